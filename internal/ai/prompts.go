package ai

const summarizeSystemPrompt = `You are an assistant that summarizes email threads.
The input is either the thread messages, one per line as "date - sender: body",
or numbered partial summaries of one long thread ("Part 1:", "Part 2:", ...).
In the second case merge the parts into one cohesive summary.`

const signatureSystemPrompt = `You are a parser that extracts contact signature info. ` +
	`Given a signature block from an email, reply ONLY with a JSON object ` +
	`with the keys: name, company, address, phone, job_title. ` +
	`If any field is not present, set its value to "N/A".`

const importanceSystemPrompt = `You are an email-importance classifier. ` +
	`Given the sender, subject line, body, To and Cc headers, ` +
	`decide whether this message is 'HIGHLY IMPORTANT' or 'LESS IMPORTANT'. ` +
	`Reply with exactly one of those two.`

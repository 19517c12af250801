package model

import "strings"

const (
	CategoryQuotation        = "Quotation"
	CategoryOrderManagement  = "Order Management"
	CategoryDelivery         = "Delivery"
	CategoryInvoiceTax       = "Invoice/Tax"
	CategoryQualityControl   = "Quality Control"
	CategoryTechnicalSupport = "Technical Support"
	CategoryOthers           = "Others"
)

// Categories is the closed label set of the thread classifier.
var Categories = []string{
	CategoryQuotation,
	CategoryOrderManagement,
	CategoryDelivery,
	CategoryInvoiceTax,
	CategoryQualityControl,
	CategoryTechnicalSupport,
	CategoryOthers,
}

// MatchLabel maps free-form model output onto one of labels. An exact
// case-insensitive match wins, then the first label contained in the
// response; anything else yields fallback.
func MatchLabel(response string, labels []string, fallback string) string {
	cleaned := strings.ToLower(strings.Trim(strings.TrimSpace(response), "\"'`.* "))
	if cleaned == "" {
		return fallback
	}

	for _, label := range labels {
		if strings.ToLower(label) == cleaned {
			return label
		}
	}

	for _, label := range labels {
		if strings.Contains(cleaned, strings.ToLower(label)) {
			return label
		}
	}

	return fallback
}

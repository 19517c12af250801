package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"email-digest/internal/model"
	"email-digest/internal/parser"
	"email-digest/internal/repository"
	"email-digest/internal/retry"
)

// ContactService derives a ContactRecord from a message and upserts it.
type ContactService struct {
	extractor    SignatureExtractor
	importance   ImportanceClassifier
	contactRepo  repository.ContactRepository
	maxSignature int
	policy       retry.Policy
	logger       *slog.Logger
}

func NewContactService(
	extractor SignatureExtractor,
	importance ImportanceClassifier,
	contactRepo repository.ContactRepository,
	maxSignature int,
	policy retry.Policy,
	logger *slog.Logger,
) *ContactService {
	return &ContactService{
		extractor:    extractor,
		importance:   importance,
		contactRepo:  contactRepo,
		maxSignature: maxSignature,
		policy:       policy,
		logger:       logger.With("component", "contacts"),
	}
}

// Upsert extracts the signature of msg, rates the message and stores the
// sender's contact. A message without a sender yields nil.
func (s *ContactService) Upsert(ctx context.Context, msg model.ParsedMessage) (*model.ContactRecord, error) {
	if strings.TrimSpace(msg.Sender) == "" {
		return nil, nil
	}

	fields, err := s.signatureFields(ctx, msg.Text)
	if err != nil {
		return nil, err
	}
	if fields.Name == model.NotAvailable {
		if name := model.DisplayName(msg.Sender); name != "" {
			fields.Name = name
		}
	}

	answer, err := retry.Value(ctx, s.policy, func(ctx context.Context) (string, error) {
		return s.importance.ClassifyImportance(ctx, model.ImportanceInput{
			Sender:  msg.Sender,
			Subject: msg.Subject,
			To:      msg.To,
			Cc:      msg.Cc,
			Body:    msg.Text,
		})
	})
	if err != nil {
		return nil, err
	}
	importance := model.MatchLabel(answer, model.Importances, model.ImportanceLow)

	contact := model.NewContactRecord(msg.Sender, fields, importance)
	if err := s.contactRepo.Upsert(ctx, contact); err != nil {
		return nil, fmt.Errorf("failed to upsert contact: %w", err)
	}

	s.logger.Debug("upserted contact", "email", contact.Email, "importance", contact.Importance)
	return contact, nil
}

func (s *ContactService) signatureFields(ctx context.Context, body string) (model.SignatureFields, error) {
	block := parser.TruncateTail(parser.ExtractSignature(body), s.maxSignature)
	if strings.TrimSpace(block) == "" {
		return model.EmptySignature(), nil
	}

	fields, err := retry.Value(ctx, s.policy, func(ctx context.Context) (model.SignatureFields, error) {
		return s.extractor.ExtractSignature(ctx, block)
	})
	if err != nil {
		return model.SignatureFields{}, err
	}
	return fields.Normalize(), nil
}

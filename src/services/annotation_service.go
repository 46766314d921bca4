package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/username/lotfolio/src/logger"
	"github.com/username/lotfolio/src/model"
	"github.com/username/lotfolio/src/models"
	"github.com/username/lotfolio/src/security/validation"
)

const (
	maxTagNameLength   = 50
	maxTagColorLength  = 20
	maxGroupNameLength = 100
)

type annotationServiceImpl struct {
	db *sql.DB
}

func NewAnnotationService(db *sql.DB) AnnotationService {
	return &annotationServiceImpl{db: db}
}

func requiredText(field, value string, maxLen int) (string, error) {
	v := validation.CleanText(value)
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	}
	if maxLen > 0 && utf8.RuneCountInString(v) > maxLen {
		return "", fmt.Errorf("%w: %s must be at most %d characters", ErrInvalidInput, field, maxLen)
	}
	return v, nil
}

// notFound maps model.ErrNotFound to the service sentinel for the entity.
func notFound(err, sentinel error) error {
	if errors.Is(err, model.ErrNotFound) {
		return sentinel
	}
	return err
}

func (s *annotationServiceImpl) requireTransaction(ctx context.Context, txnID int64) error {
	_, err := model.GetTransaction(ctx, s.db, txnID)
	return notFound(err, ErrTransactionNotFound)
}

func (s *annotationServiceImpl) ListTags(ctx context.Context) ([]*models.Tag, error) {
	return model.ListTags(ctx, s.db)
}

func (s *annotationServiceImpl) CreateTag(ctx context.Context, name, color string) (*models.Tag, error) {
	name, err := requiredText("tag name", name, maxTagNameLength)
	if err != nil {
		return nil, err
	}
	color = validation.CleanText(color)
	if utf8.RuneCountInString(color) > maxTagColorLength {
		return nil, fmt.Errorf("%w: tag color must be at most %d characters", ErrInvalidInput, maxTagColorLength)
	}
	tag := &models.Tag{Name: name, Color: color}
	if err := model.CreateTag(ctx, s.db, tag); err != nil {
		if errors.Is(err, model.ErrDuplicate) {
			return nil, fmt.Errorf("%w: tag %q already exists", ErrConflict, name)
		}
		return nil, err
	}
	logger.L.Info("Tag created", "tagID", tag.ID, "name", tag.Name)
	return tag, nil
}

func (s *annotationServiceImpl) UpdateTag(ctx context.Context, id int64, update models.TagUpdate) (*models.Tag, error) {
	tag, err := model.GetTag(ctx, s.db, id)
	if err != nil {
		return nil, notFound(err, ErrTagNotFound)
	}
	if update.Name != nil {
		if tag.Name, err = requiredText("tag name", *update.Name, maxTagNameLength); err != nil {
			return nil, err
		}
	}
	if update.Color != nil {
		color := validation.CleanText(*update.Color)
		if color == "" {
			color = models.DefaultTagColor
		}
		if utf8.RuneCountInString(color) > maxTagColorLength {
			return nil, fmt.Errorf("%w: tag color must be at most %d characters", ErrInvalidInput, maxTagColorLength)
		}
		tag.Color = color
	}
	if err := model.UpdateTag(ctx, s.db, tag); err != nil {
		if errors.Is(err, model.ErrDuplicate) {
			return nil, fmt.Errorf("%w: tag %q already exists", ErrConflict, tag.Name)
		}
		return nil, notFound(err, ErrTagNotFound)
	}
	return tag, nil
}

func (s *annotationServiceImpl) DeleteTag(ctx context.Context, id int64) error {
	if err := model.DeleteTag(ctx, s.db, id); err != nil {
		return notFound(err, ErrTagNotFound)
	}
	logger.L.Info("Tag deleted", "tagID", id)
	return nil
}

// TagTransaction reports whether a new link was made; tagging twice is not an error.
func (s *annotationServiceImpl) TagTransaction(ctx context.Context, txnID, tagID int64) (bool, error) {
	if err := s.requireTransaction(ctx, txnID); err != nil {
		return false, err
	}
	if _, err := model.GetTag(ctx, s.db, tagID); err != nil {
		return false, notFound(err, ErrTagNotFound)
	}
	return model.AddTransactionTag(ctx, s.db, txnID, tagID)
}

func (s *annotationServiceImpl) UntagTransaction(ctx context.Context, txnID, tagID int64) error {
	if err := model.RemoveTransactionTag(ctx, s.db, txnID, tagID); err != nil {
		return notFound(err, ErrTagNotFound)
	}
	return nil
}

func (s *annotationServiceImpl) GetTransactionTags(ctx context.Context, txnID int64) ([]*models.Tag, error) {
	if err := s.requireTransaction(ctx, txnID); err != nil {
		return nil, err
	}
	return model.TransactionTags(ctx, s.db, txnID)
}

func (s *annotationServiceImpl) GetComments(ctx context.Context, txnID int64) ([]*models.Comment, error) {
	if err := s.requireTransaction(ctx, txnID); err != nil {
		return nil, err
	}
	return model.TransactionComments(ctx, s.db, txnID)
}

func (s *annotationServiceImpl) AddComment(ctx context.Context, txnID int64, text string) (*models.Comment, error) {
	text, err := requiredText("comment text", text, 0)
	if err != nil {
		return nil, err
	}
	c := &models.Comment{TransactionID: txnID, Text: text}
	if err := model.CreateComment(ctx, s.db, c); err != nil {
		return nil, notFound(err, ErrTransactionNotFound)
	}
	return c, nil
}

func (s *annotationServiceImpl) UpdateComment(ctx context.Context, id int64, text string) (*models.Comment, error) {
	text, err := requiredText("comment text", text, 0)
	if err != nil {
		return nil, err
	}
	if err := model.UpdateComment(ctx, s.db, id, text); err != nil {
		return nil, notFound(err, ErrCommentNotFound)
	}
	c, err := model.GetComment(ctx, s.db, id)
	return c, notFound(err, ErrCommentNotFound)
}

func (s *annotationServiceImpl) DeleteComment(ctx context.Context, id int64) error {
	return notFound(model.DeleteComment(ctx, s.db, id), ErrCommentNotFound)
}

func (s *annotationServiceImpl) ListTradeGroups(ctx context.Context) ([]*models.TradeGroup, error) {
	return model.ListTradeGroups(ctx, s.db)
}

// GetTradeGroup loads a group with its transactions and the sum of their amounts.
func (s *annotationServiceImpl) GetTradeGroup(ctx context.Context, id int64) (*models.TradeGroup, error) {
	g, err := model.GetTradeGroup(ctx, s.db, id)
	if err != nil {
		return nil, notFound(err, ErrTradeGroupNotFound)
	}
	txns, err := model.GroupTransactions(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, t := range txns {
		if t.Amount.Valid {
			total = total.Add(t.Amount.Decimal)
		}
	}
	g.Transactions = txns
	g.TotalAmount = total.String()
	return g, nil
}

func validateGroupFields(g *models.TradeGroup) error {
	name, err := requiredText("group name", g.Name, maxGroupNameLength)
	if err != nil {
		return err
	}
	g.Name = name
	g.StrategyType = validation.CleanText(g.StrategyType)
	if !models.IsKnownStrategyType(g.StrategyType) {
		return fmt.Errorf("%w: unknown strategy type %q", ErrInvalidInput, g.StrategyType)
	}
	g.Description = validation.CleanText(g.Description)
	return nil
}

func (s *annotationServiceImpl) CreateTradeGroup(ctx context.Context, group *models.TradeGroup) (*models.TradeGroup, error) {
	if group == nil {
		return nil, fmt.Errorf("%w: trade group is required", ErrInvalidInput)
	}
	g := &models.TradeGroup{Name: group.Name, StrategyType: group.StrategyType, Description: group.Description}
	if err := validateGroupFields(g); err != nil {
		return nil, err
	}
	if err := model.CreateTradeGroup(ctx, s.db, g); err != nil {
		return nil, err
	}
	logger.L.Info("Trade group created", "groupID", g.ID, "name", g.Name, "strategy", g.StrategyType)
	return g, nil
}

// UpdateTradeGroup applies the non-nil fields; an empty strategy or description clears it.
func (s *annotationServiceImpl) UpdateTradeGroup(ctx context.Context, id int64, update models.TradeGroupUpdate) (*models.TradeGroup, error) {
	g, err := model.GetTradeGroup(ctx, s.db, id)
	if err != nil {
		return nil, notFound(err, ErrTradeGroupNotFound)
	}
	if update.Name != nil {
		g.Name = *update.Name
	}
	if update.StrategyType != nil {
		g.StrategyType = *update.StrategyType
	}
	if update.Description != nil {
		g.Description = *update.Description
	}
	if err := validateGroupFields(g); err != nil {
		return nil, err
	}
	if err := model.UpdateTradeGroup(ctx, s.db, g); err != nil {
		return nil, notFound(err, ErrTradeGroupNotFound)
	}
	return g, nil
}

func (s *annotationServiceImpl) DeleteTradeGroup(ctx context.Context, id int64) error {
	if err := model.DeleteTradeGroup(ctx, s.db, id); err != nil {
		return notFound(err, ErrTradeGroupNotFound)
	}
	logger.L.Info("Trade group deleted", "groupID", id)
	return nil
}

func (s *annotationServiceImpl) AddToTradeGroup(ctx context.Context, groupID, txnID int64) (bool, error) {
	if _, err := model.GetTradeGroup(ctx, s.db, groupID); err != nil {
		return false, notFound(err, ErrTradeGroupNotFound)
	}
	if err := s.requireTransaction(ctx, txnID); err != nil {
		return false, err
	}
	return model.AddGroupTransaction(ctx, s.db, groupID, txnID)
}

func (s *annotationServiceImpl) RemoveFromTradeGroup(ctx context.Context, groupID, txnID int64) error {
	return notFound(model.RemoveGroupTransaction(ctx, s.db, groupID, txnID), ErrTradeGroupNotFound)
}

func (s *annotationServiceImpl) GetTransactionTradeGroups(ctx context.Context, txnID int64) ([]*models.TradeGroup, error) {
	if err := s.requireTransaction(ctx, txnID); err != nil {
		return nil, err
	}
	return model.TransactionGroups(ctx, s.db, txnID)
}

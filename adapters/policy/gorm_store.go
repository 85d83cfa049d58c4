// Package policy persists gate policies in a relational store via gorm.
package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/blocchat/gatekeeper/core"
)

// TokenGate is one stored requirement row. A conversation's policy is the set
// of its rows; every row of a policy carries the same operator.
type TokenGate struct {
	ID             string  `gorm:"primaryKey;size:36"`
	ConversationID string  `gorm:"index;size:128;not null"`
	TokenAddress   *string `gorm:"size:64"`
	TokenSymbol    string  `gorm:"size:32;not null"`
	MinAmount      string  `gorm:"size:96;not null"`
	Operator       string  `gorm:"size:8;not null"`
	Position       int     `gorm:"not null"` // preserves requirement order within a policy
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// GormStore implements ports.GatePolicyStore over a gorm handle.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore migrates the token_gates table and returns the store.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&TokenGate{}); err != nil {
		return nil, fmt.Errorf("failed to migrate token gates: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Load returns the conversation's policy, requirements in insertion order, or
// core.ErrPolicyNotFound when no rows exist.
func (s *GormStore) Load(ctx context.Context, conversationID string) (core.GatePolicy, error) {
	var rows []TokenGate
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("position ASC").
		Find(&rows).Error
	if err != nil {
		return core.GatePolicy{}, fmt.Errorf("%w: %v", core.ErrUpstream, err)
	}
	if len(rows) == 0 {
		return core.GatePolicy{}, core.ErrPolicyNotFound
	}

	policy := core.GatePolicy{
		ConversationID: conversationID,
		Operator:       core.Operator(rows[0].Operator),
		Requirements:   make([]core.TokenRequirement, 0, len(rows)),
	}
	for _, row := range rows {
		policy.Requirements = append(policy.Requirements, core.TokenRequirement{
			TokenAddress: row.TokenAddress,
			TokenSymbol:  row.TokenSymbol,
			MinAmount:    row.MinAmount,
		})
	}
	return policy, nil
}

// Replace deletes the conversation's prior rows and inserts the new set in a
// single transaction, so readers never observe a mix of old and new.
func (s *GormStore) Replace(ctx context.Context, policy core.GatePolicy) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", policy.ConversationID).Delete(&TokenGate{}).Error; err != nil {
			return err
		}
		rows := make([]TokenGate, 0, len(policy.Requirements))
		for i, req := range policy.Requirements {
			rows = append(rows, TokenGate{
				ID:             uuid.New().String(),
				ConversationID: policy.ConversationID,
				TokenAddress:   req.TokenAddress,
				TokenSymbol:    req.TokenSymbol,
				MinAmount:      req.MinAmount,
				Operator:       string(policy.Operator),
				Position:       i,
			})
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrUpstream, err)
	}
	return nil
}

// Delete removes all rows for the conversation.
func (s *GormStore) Delete(ctx context.Context, conversationID string) error {
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Delete(&TokenGate{}).Error
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrUpstream, err)
	}
	return nil
}

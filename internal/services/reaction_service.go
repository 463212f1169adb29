package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/yaruyo/internal/models"
	apperrors "github.com/charlesng35/yaruyo/pkg/errors"
)

const maxReactionLookupIDs = 10

// LikeResult is returned by Like.
type LikeResult struct {
	Liked    bool `json:"liked"`
	Created  bool `json:"-"`
	Notified bool `json:"-"`
}

// ReactionService stores likes on plans and records.
type ReactionService struct {
	db       *gorm.DB
	dispatch *DispatchService
}

// NewReactionService constructs a ReactionService.
func NewReactionService(db *gorm.DB, dispatch *DispatchService) (*ReactionService, error) {
	if db == nil {
		return nil, errors.New("reaction service: db is required")
	}
	if dispatch == nil {
		return nil, errors.New("reaction service: dispatch service is required")
	}
	return &ReactionService{db: db, dispatch: dispatch}, nil
}

// Like records the caller's like on a plan or record. Liking twice keeps the
// first reaction and notifies the owner only once.
func (s *ReactionService) Like(ctx context.Context, uid, targetType, targetID string) (*LikeResult, error) {
	ctx = ensureContext(ctx)

	targetID = strings.TrimSpace(targetID)
	if !models.IsValidReactionTarget(targetType) {
		return nil, apperrors.InvalidArgument("target type must be plan or record")
	}
	if targetID == "" {
		return nil, apperrors.InvalidArgument("target id is required")
	}

	db := s.db.WithContext(ctx)
	actor, err := loadUser(db, uid)
	if err != nil {
		return nil, wrapInternal("reaction service: like", err)
	}
	if actor.FamilyID == nil {
		return nil, ErrNotInFamily
	}

	familyID, ownerID, err := resolveTarget(db, targetType, targetID)
	if err != nil {
		return nil, wrapInternal("reaction service: like", err)
	}
	if *actor.FamilyID != familyID {
		return nil, ErrFamilyMismatch
	}

	created := false
	err = db.Transaction(func(tx *gorm.DB) error {
		id := models.ReactionID(targetType, targetID, uid)
		var count int64
		if err := tx.Model(&models.Reaction{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		reaction := &models.Reaction{
			ID:         id,
			FamilyID:   familyID,
			TargetType: targetType,
			TargetID:   targetID,
			FromUserID: uid,
			Type:       models.ReactionTypeLike,
		}
		if err := tx.Create(reaction).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil && !isUniqueConstraintError(err) {
		return nil, fmt.Errorf("reaction service: store like: %w", err)
	}

	result := &LikeResult{Liked: true, Created: created}
	if !created || ownerID == uid {
		return result, nil
	}

	claim := Claim{
		DedupeKey:   fmt.Sprintf("%s:%s:%s:%s:%s", models.NotificationReactionLike, ownerID, targetType, targetID, uid),
		Type:        models.NotificationReactionLike,
		RecipientID: ownerID,
		FamilyID:    familyID,
	}
	outcome := s.dispatch.Dispatch(context.WithoutCancel(ctx), claim, reactionLikeMessage(actor.DisplayName(), targetType))
	result.Notified = outcome.Status == OutcomeSent
	return result, nil
}

// ListMine returns the subset of targetIDs the caller has liked.
func (s *ReactionService) ListMine(ctx context.Context, uid, targetType string, targetIDs []string) ([]string, error) {
	ctx = ensureContext(ctx)

	if !models.IsValidReactionTarget(targetType) {
		return nil, apperrors.InvalidArgument("target type must be plan or record")
	}
	ids := normaliseIDs(targetIDs)
	if len(ids) > maxReactionLookupIDs {
		return nil, apperrors.InvalidArgument(fmt.Sprintf("at most %d target ids are allowed", maxReactionLookupIDs))
	}
	if len(ids) == 0 {
		return []string{}, nil
	}

	var liked []string
	err := s.db.WithContext(ctx).
		Model(&models.Reaction{}).
		Where("target_type = ? AND target_id IN ? AND from_user_id = ?", targetType, ids, uid).
		Pluck("target_id", &liked).Error
	if err != nil {
		return nil, fmt.Errorf("reaction service: list likes: %w", err)
	}

	set := make(map[string]struct{}, len(liked))
	for _, id := range liked {
		set[id] = struct{}{}
	}
	out := make([]string, 0, len(liked))
	for _, id := range ids {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// resolveTarget returns the family and owner of a plan or record.
func resolveTarget(tx *gorm.DB, targetType, targetID string) (string, string, error) {
	var row struct {
		FamilyID string
		UserID   string
	}

	var model any = &models.Plan{}
	if targetType == models.ReactionTargetRecord {
		model = &models.Record{}
	}
	err := tx.Model(model).Select("family_id", "user_id").Where("id = ?", targetID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", "", ErrTargetNotFound
	}
	if err != nil {
		return "", "", err
	}
	return row.FamilyID, row.UserID, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"emoji-to-do/internal/log"
	"emoji-to-do/internal/models"
)

const reactionPatternsCollection = "reaction_patterns"

// ErrReactionPatternNotFound is returned when deleting a pattern that does
// not exist.
var ErrReactionPatternNotFound = errors.New("reaction pattern not found")

// FirestoreService provides database operations for Firestore. It backs both
// the pipeline's pattern lookups and the admin CRUD API.
type FirestoreService struct {
	client *firestore.Client
}

// NewFirestoreService creates a new FirestoreService with the provided client.
func NewFirestoreService(client *firestore.Client) *FirestoreService {
	return &FirestoreService{client: client}
}

// reactionPatternDocID builds a deterministic document ID so that a team can
// hold at most one pattern per reaction name. The name is query-escaped to
// keep the ID valid for arbitrary emoji names.
func reactionPatternDocID(teamID, name string) string {
	return teamID + "#" + url.QueryEscape(name)
}

// FindReactionPattern looks up the pattern for a (team, reaction) pair.
// Returns nil without error when no pattern is configured. The channel
// argument is accepted for channel-scoped overrides later but ignored.
func (fs *FirestoreService) FindReactionPattern(
	ctx context.Context, teamID, _ string, reaction string,
) (*models.ReactionPattern, error) {
	iter := fs.client.Collection(reactionPatternsCollection).
		Where("team_id", "==", teamID).
		Where("name", "==", reaction).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err != nil {
		if errors.Is(err, iterator.Done) || status.Code(err) == codes.NotFound {
			return nil, nil
		}
		log.Error(ctx, "Failed to query reaction pattern",
			"error", err,
			"team_id", teamID,
			"reaction", reaction,
			"operation", "find_reaction_pattern",
		)
		return nil, fmt.Errorf("failed to query reaction pattern for team %s: %w", teamID, err)
	}

	var pattern models.ReactionPattern
	if err := doc.DataTo(&pattern); err != nil {
		log.Error(ctx, "Failed to unmarshal reaction pattern",
			"error", err,
			"team_id", teamID,
			"reaction", reaction,
			"operation", "unmarshal_reaction_pattern",
		)
		return nil, fmt.Errorf("failed to unmarshal reaction pattern for team %s: %w", teamID, err)
	}

	return &pattern, nil
}

// CreateReactionPattern creates or replaces the pattern for the pattern's
// (team, reaction) pair.
func (fs *FirestoreService) CreateReactionPattern(ctx context.Context, pattern *models.ReactionPattern) error {
	if pattern.CreatedAt.IsZero() {
		pattern.CreatedAt = time.Now()
	}

	docID := reactionPatternDocID(pattern.TeamID, pattern.Name)
	_, err := fs.client.Collection(reactionPatternsCollection).Doc(docID).Set(ctx, pattern)
	if err != nil {
		log.Error(ctx, "Failed to create reaction pattern",
			"error", err,
			"team_id", pattern.TeamID,
			"reaction", pattern.Name,
			"operation", "create_reaction_pattern",
		)
		return fmt.Errorf("failed to create reaction pattern %s for team %s: %w",
			pattern.Name, pattern.TeamID, err)
	}
	return nil
}

// ListReactionPatterns returns all patterns configured for a team.
func (fs *FirestoreService) ListReactionPatterns(
	ctx context.Context, teamID string,
) ([]models.ReactionPattern, error) {
	iter := fs.client.Collection(reactionPatternsCollection).
		Where("team_id", "==", teamID).
		Documents(ctx)
	defer iter.Stop()

	var patterns []models.ReactionPattern
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			log.Error(ctx, "Failed to list reaction patterns",
				"error", err,
				"team_id", teamID,
				"operation", "list_reaction_patterns",
			)
			return nil, fmt.Errorf("failed to list reaction patterns for team %s: %w", teamID, err)
		}

		var pattern models.ReactionPattern
		if err := doc.DataTo(&pattern); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reaction pattern for team %s: %w", teamID, err)
		}
		patterns = append(patterns, pattern)
	}

	return patterns, nil
}

// DeleteReactionPattern deletes the pattern for a (team, reaction) pair.
func (fs *FirestoreService) DeleteReactionPattern(ctx context.Context, teamID, name string) error {
	docID := reactionPatternDocID(teamID, name)
	docRef := fs.client.Collection(reactionPatternsCollection).Doc(docID)

	if _, err := docRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrReactionPatternNotFound
		}
		return fmt.Errorf("failed to get reaction pattern %s for team %s: %w", name, teamID, err)
	}

	if _, err := docRef.Delete(ctx); err != nil {
		log.Error(ctx, "Failed to delete reaction pattern",
			"error", err,
			"team_id", teamID,
			"reaction", name,
			"operation", "delete_reaction_pattern",
		)
		return fmt.Errorf("failed to delete reaction pattern %s for team %s: %w", name, teamID, err)
	}
	return nil
}

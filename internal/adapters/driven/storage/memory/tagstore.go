package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/threadline/internal/core/domain"
	"github.com/custodia-labs/threadline/internal/core/ports/driven"
)

// Ensure TagStore implements the interface.
var _ driven.TagStore = (*TagStore)(nil)

// TagStore is an in-memory implementation of driven.TagStore.
type TagStore struct {
	mu     sync.RWMutex
	tags   map[int64]domain.Tag
	bySlug map[string]int64
	docs   map[int64]map[int64]bool
	nextID int64
}

// NewTagStore creates a new in-memory tag store.
func NewTagStore() *TagStore {
	return &TagStore{
		tags:   make(map[int64]domain.Tag),
		bySlug: make(map[string]int64),
		docs:   make(map[int64]map[int64]bool),
	}
}

// ListTags returns the tag vocabulary of a tenant ordered by name.
func (s *TagStore) ListTags(_ context.Context, appID string) ([]domain.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tags []domain.Tag
	for _, tag := range s.tags {
		if tag.AppID == appID {
			tags = append(tags, tag)
		}
	}
	sortTags(tags)
	return tags, nil
}

// FindOrCreateTag returns the tenant tag for Slugify(name), creating it when absent.
func (s *TagStore) FindOrCreateTag(_ context.Context, appID, name string) (*domain.Tag, error) {
	name = strings.TrimSpace(name)
	slug := domain.Slugify(name)
	if appID == "" || slug == "" {
		return nil, fmt.Errorf("creating tag: %w", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := appID + "\x00" + slug
	if id, ok := s.bySlug[key]; ok {
		tag := s.tags[id]
		return &tag, nil
	}

	s.nextID++
	tag := domain.Tag{ID: s.nextID, AppID: appID, Name: name, Slug: slug}
	s.tags[tag.ID] = tag
	s.bySlug[key] = tag.ID
	return &tag, nil
}

// GetDocumentTags returns the tags associated with a document.
func (s *TagStore) GetDocumentTags(_ context.Context, documentID int64) ([]domain.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tags []domain.Tag
	for id := range s.docs[documentID] {
		tags = append(tags, s.tags[id])
	}
	sortTags(tags)
	return tags, nil
}

// AddDocumentTags associates tags with a document. Existing pairs are ignored.
func (s *TagStore) AddDocumentTags(_ context.Context, documentID int64, tagIDs []int64) error {
	if len(tagIDs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range tagIDs {
		if _, ok := s.tags[id]; !ok {
			return fmt.Errorf("associating tag %d: %w", id, domain.ErrNotFound)
		}
	}
	set, ok := s.docs[documentID]
	if !ok {
		set = make(map[int64]bool)
		s.docs[documentID] = set
	}
	for _, id := range tagIDs {
		set[id] = true
	}
	return nil
}

func sortTags(tags []domain.Tag) {
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Name == tags[j].Name {
			return tags[i].ID < tags[j].ID
		}
		return tags[i].Name < tags[j].Name
	})
}

// Ensure EndUserStore implements the interface.
var _ driven.EndUserStore = (*EndUserStore)(nil)

// EndUserStore is an in-memory implementation of driven.EndUserStore.
type EndUserStore struct {
	mu      sync.RWMutex
	users   map[int64]domain.EndUser
	byEmail map[string]int64
	links   map[int64][]int64
	nextID  int64
}

// NewEndUserStore creates a new in-memory end user store.
func NewEndUserStore() *EndUserStore {
	return &EndUserStore{
		users:   make(map[int64]domain.EndUser),
		byEmail: make(map[string]int64),
		links:   make(map[int64][]int64),
	}
}

// FindOrCreateEndUser returns the end user with the same (AppID, Email),
// creating it from user when absent.
func (s *EndUserStore) FindOrCreateEndUser(_ context.Context, user domain.EndUser) (*domain.EndUser, error) {
	email := domain.NormaliseEmail(user.Email)
	if user.AppID == "" || email == "" {
		return nil, fmt.Errorf("creating end user: %w", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := user.AppID + "\x00" + email
	if id, ok := s.byEmail[key]; ok {
		found := s.users[id]
		return &found, nil
	}

	if user.Type == "" {
		user.Type = domain.EndUserTypeUser
	}
	s.nextID++
	user.ID = s.nextID
	user.Email = email
	s.users[user.ID] = user
	s.byEmail[key] = user.ID
	return &user, nil
}

// LinkDocument associates an end user with a document. Existing links are ignored.
func (s *EndUserStore) LinkDocument(_ context.Context, endUserID, documentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[endUserID]; !ok {
		return fmt.Errorf("linking end user %d: %w", endUserID, domain.ErrNotFound)
	}
	for _, id := range s.links[documentID] {
		if id == endUserID {
			return nil
		}
	}
	s.links[documentID] = append(s.links[documentID], endUserID)
	return nil
}

// ListDocumentEndUsers returns the end users linked to a document.
func (s *EndUserStore) ListDocumentEndUsers(_ context.Context, documentID int64) ([]domain.EndUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.EndUser, 0, len(s.links[documentID]))
	for _, id := range s.links[documentID] {
		users = append(users, s.users[id])
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// Count returns the number of stored end users across all tenants.
func (s *EndUserStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

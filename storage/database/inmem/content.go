package inmemdb

import (
	"context"
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/announcement"
	"github.com/trezcool/darasa/core/contribution"
	"github.com/trezcool/darasa/core/message"
)

// announcements

type announcementRepository struct {
	db *table[announcement.Announcement]
}

var _ announcement.Repository = (*announcementRepository)(nil)

func NewAnnouncementRepository(db *DB) announcement.Repository {
	return &announcementRepository{db: db.announcements}
}

func copyAnnouncement(a announcement.Announcement) announcement.Announcement {
	a.Link = copyString(a.Link)
	a.LinkLabel = copyString(a.LinkLabel)
	a.Ref = copyRef(a.Ref)
	a.FileURL, a.ContentHTML = "", ""
	return a
}

func (repo *announcementRepository) ListAnnouncements(_ context.Context, courseID string) ([]announcement.Announcement, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	items := repo.db.sorted(func(a announcement.Announcement) bool {
		return courseID == "" || a.CourseID == courseID
	}, func(a announcement.Announcement) time.Time { return a.CreatedAt }, true)
	for i := range items {
		items[i] = copyAnnouncement(items[i])
	}
	return items, nil
}

func (repo *announcementRepository) GetAnnouncement(_ context.Context, id string) (announcement.Announcement, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if r, ok := repo.db.rows[id]; ok {
		return copyAnnouncement(r.val), nil
	}
	return announcement.Announcement{}, core.ErrNotFound
}

func (repo *announcementRepository) CreateAnnouncement(_ context.Context, a announcement.Announcement) (announcement.Announcement, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	a.ID = newID()
	a = copyAnnouncement(a)
	repo.db.insert(a.ID, a)
	return copyAnnouncement(a), nil
}

func (repo *announcementRepository) UpdateAnnouncement(_ context.Context, a announcement.Announcement) (announcement.Announcement, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	r, ok := repo.db.rows[a.ID]
	if !ok {
		return announcement.Announcement{}, core.ErrNotFound
	}
	a.CreatedAt = r.val.CreatedAt
	a.AuthorID = r.val.AuthorID
	r.val = copyAnnouncement(a)
	return copyAnnouncement(a), nil
}

func (repo *announcementRepository) DeleteAnnouncement(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.rows[id]; !ok {
		return core.ErrNotFound
	}
	delete(repo.db.rows, id)
	return nil
}

// messages

type messageRepository struct {
	db *table[message.Message]
}

var _ message.Repository = (*messageRepository)(nil)

func NewMessageRepository(db *DB) message.Repository {
	return &messageRepository{db: db.messages}
}

func copyMessage(m message.Message) message.Message {
	m.Content = copyString(m.Content)
	m.Caption = copyString(m.Caption)
	m.AudioURL = copyString(m.AudioURL)
	m.Ref = copyRef(m.Ref)
	m.FileURL = ""
	return m
}

func (repo *messageRepository) Thread(_ context.Context, a, b string) ([]message.Message, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	msgs := repo.db.sorted(func(m message.Message) bool {
		return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
	}, func(m message.Message) time.Time { return m.CreatedAt }, false)
	for i := range msgs {
		msgs[i] = copyMessage(msgs[i])
	}
	return msgs, nil
}

func (repo *messageRepository) GetMessage(_ context.Context, id string) (message.Message, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if r, ok := repo.db.rows[id]; ok {
		return copyMessage(r.val), nil
	}
	return message.Message{}, core.ErrNotFound
}

func (repo *messageRepository) CreateMessage(_ context.Context, m message.Message) (message.Message, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	m.ID = newID()
	m = copyMessage(m)
	repo.db.insert(m.ID, m)
	return copyMessage(m), nil
}

func (repo *messageRepository) DeleteMessage(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.rows[id]; !ok {
		return core.ErrNotFound
	}
	delete(repo.db.rows, id)
	return nil
}

// contributions

type contributionRepository struct {
	db *table[contribution.Contribution]
}

var _ contribution.Repository = (*contributionRepository)(nil)

func NewContributionRepository(db *DB) contribution.Repository {
	return &contributionRepository{db: db.contributions}
}

func copyContribution(c contribution.Contribution) contribution.Contribution {
	c.Ref = copyRef(c.Ref)
	c.FileURL = ""
	return c
}

func (repo *contributionRepository) ListContributions(_ context.Context, week int) ([]contribution.Contribution, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	items := repo.db.sorted(func(c contribution.Contribution) bool {
		return week == 0 || c.Week == week
	}, func(c contribution.Contribution) time.Time { return c.CreatedAt }, true)
	for i := range items {
		items[i] = copyContribution(items[i])
	}
	return items, nil
}

func (repo *contributionRepository) GetContribution(_ context.Context, id string) (contribution.Contribution, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if r, ok := repo.db.rows[id]; ok {
		return copyContribution(r.val), nil
	}
	return contribution.Contribution{}, core.ErrNotFound
}

func (repo *contributionRepository) CreateContribution(_ context.Context, c contribution.Contribution) (contribution.Contribution, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	c.ID = newID()
	c = copyContribution(c)
	repo.db.insert(c.ID, c)
	return copyContribution(c), nil
}

func (repo *contributionRepository) DeleteContribution(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.rows[id]; !ok {
		return core.ErrNotFound
	}
	delete(repo.db.rows, id)
	return nil
}

package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/announcement"
	"github.com/trezcool/darasa/core/contribution"
	"github.com/trezcool/darasa/core/message"
)

// announcements

const announcementColumns = `id, course_id, title, content, link, link_label,
	file_path, file_name, file_type, author_id, created_at, updated_at`

type announcementRow struct {
	ID        string      `db:"id"`
	CourseID  string      `db:"course_id"`
	Title     string      `db:"title"`
	Content   string      `db:"content"`
	Link      null.String `db:"link"`
	LinkLabel null.String `db:"link_label"`
	fileCols
	AuthorID  null.String `db:"author_id"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

func toAnnouncementRow(a announcement.Announcement) announcementRow {
	return announcementRow{
		ID:        a.ID,
		CourseID:  a.CourseID,
		Title:     a.Title,
		Content:   a.Content,
		Link:      null.StringFromPtr(a.Link),
		LinkLabel: null.StringFromPtr(a.LinkLabel),
		fileCols:  fileColsOf(a.Ref),
		AuthorID:  nullID(a.AuthorID),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func (r announcementRow) announcement() announcement.Announcement {
	return announcement.Announcement{
		ID:        r.ID,
		CourseID:  r.CourseID,
		Title:     r.Title,
		Content:   r.Content,
		Link:      r.Link.Ptr(),
		LinkLabel: r.LinkLabel.Ptr(),
		Ref:       r.ref(),
		AuthorID:  r.AuthorID.String,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type announcementRepository struct {
	db *sqlx.DB
}

var _ announcement.Repository = (*announcementRepository)(nil)

func NewAnnouncementRepository(db *sqlx.DB) announcement.Repository {
	return &announcementRepository{db: db}
}

func (repo *announcementRepository) ListAnnouncements(ctx context.Context, courseID string) ([]announcement.Announcement, error) {
	var rows []announcementRow
	q := "SELECT " + announcementColumns + " FROM announcements WHERE ($1 = '' OR course_id = $1) ORDER BY created_at DESC, id"
	if err := repo.db.SelectContext(ctx, &rows, q, courseID); err != nil {
		return nil, errors.Wrap(err, "selecting announcements")
	}
	items := make([]announcement.Announcement, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.announcement())
	}
	return items, nil
}

func (repo *announcementRepository) GetAnnouncement(ctx context.Context, id string) (announcement.Announcement, error) {
	var row announcementRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+announcementColumns+" FROM announcements WHERE id = $1", id); err != nil {
		return announcement.Announcement{}, translate(err, "selecting announcement")
	}
	return row.announcement(), nil
}

func (repo *announcementRepository) CreateAnnouncement(ctx context.Context, a announcement.Announcement) (announcement.Announcement, error) {
	a.ID = newID()
	q := `INSERT INTO announcements (` + announcementColumns + `)
		VALUES (:id, :course_id, :title, :content, :link, :link_label,
			:file_path, :file_name, :file_type, :author_id, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, toAnnouncementRow(a)); err != nil {
		return announcement.Announcement{}, errors.Wrap(err, "inserting announcement")
	}
	return a, nil
}

// UpdateAnnouncement keeps the course, author and creation time of the stored row.
func (repo *announcementRepository) UpdateAnnouncement(ctx context.Context, a announcement.Announcement) (announcement.Announcement, error) {
	q, args, err := repo.db.BindNamed(`UPDATE announcements SET
			title = :title, content = :content, link = :link, link_label = :link_label,
			file_path = :file_path, file_name = :file_name, file_type = :file_type, updated_at = :updated_at
		WHERE id = :id
		RETURNING `+announcementColumns, toAnnouncementRow(a))
	if err != nil {
		return announcement.Announcement{}, errors.Wrap(err, "binding announcement")
	}
	var row announcementRow
	if err := repo.db.GetContext(ctx, &row, q, args...); err != nil {
		return announcement.Announcement{}, translate(err, "updating announcement")
	}
	return row.announcement(), nil
}

func (repo *announcementRepository) DeleteAnnouncement(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM announcements WHERE id = $1", id)
	return checkAffected(res, err, "deleting announcement")
}

// messages

const messageColumns = `id, sender_id, receiver_id, content, caption, audio_url,
	file_path, file_name, file_type, message_type, duration, created_at`

type messageRow struct {
	ID         string      `db:"id"`
	SenderID   string      `db:"sender_id"`
	ReceiverID string      `db:"receiver_id"`
	Content    null.String `db:"content"`
	Caption    null.String `db:"caption"`
	AudioURL   null.String `db:"audio_url"`
	fileCols
	MessageType string    `db:"message_type"`
	Duration    int       `db:"duration"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r messageRow) message() message.Message {
	return message.Message{
		ID:          r.ID,
		SenderID:    r.SenderID,
		ReceiverID:  r.ReceiverID,
		Content:     r.Content.Ptr(),
		Caption:     r.Caption.Ptr(),
		AudioURL:    r.AudioURL.Ptr(),
		Ref:         r.ref(),
		MessageType: message.Kind(r.MessageType),
		Duration:    r.Duration,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

type messageRepository struct {
	db *sqlx.DB
}

var _ message.Repository = (*messageRepository)(nil)

func NewMessageRepository(db *sqlx.DB) message.Repository {
	return &messageRepository{db: db}
}

func (repo *messageRepository) Thread(ctx context.Context, a, b string) ([]message.Message, error) {
	var rows []messageRow
	q := "SELECT " + messageColumns + ` FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at, id`
	if err := repo.db.SelectContext(ctx, &rows, q, a, b); err != nil {
		if pqCode(err) == codeInvalidTextRepr {
			return []message.Message{}, nil
		}
		return nil, errors.Wrap(err, "selecting thread")
	}
	msgs := make([]message.Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, r.message())
	}
	return msgs, nil
}

func (repo *messageRepository) GetMessage(ctx context.Context, id string) (message.Message, error) {
	var row messageRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+messageColumns+" FROM messages WHERE id = $1", id); err != nil {
		return message.Message{}, translate(err, "selecting message")
	}
	return row.message(), nil
}

func (repo *messageRepository) CreateMessage(ctx context.Context, m message.Message) (message.Message, error) {
	m.ID = newID()
	row := messageRow{
		ID:          m.ID,
		SenderID:    m.SenderID,
		ReceiverID:  m.ReceiverID,
		Content:     null.StringFromPtr(m.Content),
		Caption:     null.StringFromPtr(m.Caption),
		AudioURL:    null.StringFromPtr(m.AudioURL),
		fileCols:    fileColsOf(m.Ref),
		MessageType: string(m.MessageType),
		Duration:    m.Duration,
		CreatedAt:   m.CreatedAt,
	}
	q := `INSERT INTO messages (` + messageColumns + `)
		VALUES (:id, :sender_id, :receiver_id, :content, :caption, :audio_url,
			:file_path, :file_name, :file_type, :message_type, :duration, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return message.Message{}, translate(err, "inserting message")
	}
	return m, nil
}

func (repo *messageRepository) DeleteMessage(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM messages WHERE id = $1", id)
	return checkAffected(res, err, "deleting message")
}

// contributions

const contributionColumns = `id, week, contributor_name, media_type, caption,
	file_path, file_name, file_type, file_size, created_at`

type contributionRow struct {
	ID              string `db:"id"`
	Week            int    `db:"week"`
	ContributorName string `db:"contributor_name"`
	MediaType       string `db:"media_type"`
	Caption         string `db:"caption"`
	fileCols
	FileSize  int64     `db:"file_size"`
	CreatedAt time.Time `db:"created_at"`
}

func (r contributionRow) contribution() contribution.Contribution {
	return contribution.Contribution{
		ID:              r.ID,
		Week:            r.Week,
		ContributorName: r.ContributorName,
		MediaType:       contribution.MediaType(r.MediaType),
		Caption:         r.Caption,
		Ref:             r.ref(),
		FileSize:        r.FileSize,
		CreatedAt:       r.CreatedAt.UTC(),
	}
}

type contributionRepository struct {
	db *sqlx.DB
}

var _ contribution.Repository = (*contributionRepository)(nil)

func NewContributionRepository(db *sqlx.DB) contribution.Repository {
	return &contributionRepository{db: db}
}

func (repo *contributionRepository) ListContributions(ctx context.Context, week int) ([]contribution.Contribution, error) {
	var rows []contributionRow
	q := "SELECT " + contributionColumns + " FROM contributions WHERE ($1 = 0 OR week = $1) ORDER BY created_at DESC, id"
	if err := repo.db.SelectContext(ctx, &rows, q, week); err != nil {
		return nil, errors.Wrap(err, "selecting contributions")
	}
	items := make([]contribution.Contribution, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.contribution())
	}
	return items, nil
}

func (repo *contributionRepository) GetContribution(ctx context.Context, id string) (contribution.Contribution, error) {
	var row contributionRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+contributionColumns+" FROM contributions WHERE id = $1", id); err != nil {
		return contribution.Contribution{}, translate(err, "selecting contribution")
	}
	return row.contribution(), nil
}

func (repo *contributionRepository) CreateContribution(ctx context.Context, c contribution.Contribution) (contribution.Contribution, error) {
	c.ID = newID()
	row := contributionRow{
		ID:              c.ID,
		Week:            c.Week,
		ContributorName: c.ContributorName,
		MediaType:       string(c.MediaType),
		Caption:         c.Caption,
		fileCols:        fileColsOf(c.Ref),
		FileSize:        c.FileSize,
		CreatedAt:       c.CreatedAt,
	}
	q := `INSERT INTO contributions (` + contributionColumns + `)
		VALUES (:id, :week, :contributor_name, :media_type, :caption,
			:file_path, :file_name, :file_type, :file_size, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return contribution.Contribution{}, errors.Wrap(err, "inserting contribution")
	}
	return c, nil
}

func (repo *contributionRepository) DeleteContribution(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM contributions WHERE id = $1", id)
	return checkAffected(res, err, "deleting contribution")
}

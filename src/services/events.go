package services

import (
	"context"
	"encoding/json"
	"log"

	"rms/src/models"
	"rms/src/types"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Event struct {
	Name    string      `json:"name"`
	UserID  uint        `json:"user_id,omitempty"`
	Title   string      `json:"title,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    types.JSONB `json:"data,omitempty"`
}

// Publisher Domain event sink. Publishing is best effort: a failed publish is
// logged and never rolls back the state transition that produced it.
type Publisher interface {
	Publish(ctx context.Context, event *Event)
}

// NotificationPublisher Writes a notifications row for the addressed user and
// fans the event out on a redis channel.
type NotificationPublisher struct {
	db      *gorm.DB
	rd      *redis.Client
	channel string
}

func NewNotificationPublisher(db *gorm.DB, rd *redis.Client, channel string) *NotificationPublisher {
	if channel == "" {
		channel = "rms-events"
	}
	return &NotificationPublisher{db: db, rd: rd, channel: channel}
}

func (p *NotificationPublisher) Publish(ctx context.Context, event *Event) {
	if event.UserID != 0 {
		data := event.Data
		notification := models.Notification{
			UserID:  event.UserID,
			Title:   event.Title,
			Message: event.Message,
			Type:    event.Name,
			Data:    &data,
		}
		if err := p.db.WithContext(ctx).Create(&notification).Error; err != nil {
			log.Printf("Error creating Notification for %s: %s\n", event.Name, err.Error())
		}
	}
	if p.rd == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error serializing event %s: %s\n", event.Name, err.Error())
		return
	}
	if err := p.rd.Publish(ctx, p.channel, string(payload)).Err(); err != nil {
		log.Printf("Error publishing event %s: %s\n", event.Name, err.Error())
	}
}

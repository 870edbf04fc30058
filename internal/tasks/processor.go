package tasks

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/ignatzorin/services-marketplace/internal/domain/entity"
	"github.com/ignatzorin/services-marketplace/internal/domain/event"
	"github.com/ignatzorin/services-marketplace/internal/domain/repository"
	"github.com/ignatzorin/services-marketplace/internal/logger"
	"github.com/ignatzorin/services-marketplace/internal/service"
)

type RequestReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.ServiceRequest, error)
	LoadParties(ctx context.Context, r *entity.ServiceRequest) (*repository.RequestParties, error)
}

// Audience поставщики, которым предлагается новая заявка.
type Audience interface {
	ProviderUsersForFeature(ctx context.Context, featureID uuid.UUID) ([]uuid.UUID, error)
}

type Sender interface {
	Send(ctx context.Context, msg service.NotificationMessage) error
}

// Processor превращает события заявок в уведомления.
type Processor struct {
	requests RequestReader
	audience Audience
	sender   Sender
}

func NewProcessor(requests RequestReader, audience Audience, sender Sender) *Processor {
	return &Processor{requests: requests, audience: audience, sender: sender}
}

// ProcessTask обработчик asynq.
func (p *Processor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	ev, err := parseRequestEvent(t)
	if err != nil {
		return err
	}
	return p.Handle(ctx, ev)
}

// Handle определяет получателей и текст уведомления по виду события.
func (p *Processor) Handle(ctx context.Context, ev event.RequestEvent) error {
	sr, err := p.requests.FindByID(ctx, ev.RequestID)
	if err != nil {
		return fmt.Errorf("tasks: load request %s: %w", ev.RequestID, err)
	}
	parties, err := p.requests.LoadParties(ctx, sr)
	if err != nil {
		return fmt.Errorf("tasks: load parties %s: %w", ev.RequestID, err)
	}

	msgs, err := p.messages(ctx, ev, sr, parties)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		if len(msg.UserIDs) == 0 {
			continue
		}
		msg.Kind = string(ev.Kind)
		if msg.Data == nil {
			msg.Data = map[string]string{}
		}
		msg.Data["request_id"] = sr.ID.String()
		msg.Data["serial"] = sr.Serial
		if err := p.sender.Send(ctx, msg); err != nil {
			return fmt.Errorf("tasks: send %s: %w", ev.Kind, err)
		}
	}

	if logger.Log != nil {
		logger.Log.WithFields(map[string]interface{}{
			"kind":       ev.Kind,
			"request_id": sr.ID,
			"messages":   len(msgs),
		}).Info("tasks: уведомления отправлены")
	}
	return nil
}

func (p *Processor) messages(ctx context.Context, ev event.RequestEvent, sr *entity.ServiceRequest, parties *repository.RequestParties) ([]service.NotificationMessage, error) {
	requester := []uuid.UUID{sr.RequesterID}
	feature := parties.FeatureName
	name := parties.Requester.Name

	switch ev.Kind {
	case event.PendingForApproval:
		return one(requester, "Service status: under approval",
			fmt.Sprintf("Your service %q is under approval.", feature)), nil

	case event.RequestApproved:
		msgs := one(requester, "Service status: approved",
			fmt.Sprintf("Your service %q is approved by the admin team.", feature))
		if p.audience != nil && !sr.IsExtra() {
			providers, err := p.audience.ProviderUsersForFeature(ctx, sr.FeatureID)
			if err != nil {
				return nil, fmt.Errorf("tasks: providers for feature: %w", err)
			}
			msgs = append(msgs, service.NotificationMessage{
				UserIDs: providers,
				Title:   fmt.Sprintf("New job is waiting for you: %s", feature),
				Body:    "Check it out now and accept the new job.",
			})
		}
		return msgs, nil

	case event.RequestRejected:
		return one(requester, "Service status: rejected",
			fmt.Sprintf("Your service %q is rejected, please contact support.", feature)), nil

	case event.RequestAccepted:
		return one(requester, "Service status: accepted",
			fmt.Sprintf("Your service %q is accepted by the service provider.", feature)), nil

	case event.RequestAssigned:
		return one(ev.UserIDs, fmt.Sprintf("New job assigned: %s", feature),
			"A new job has been assigned under your name. Make sure to be on time."), nil

	case event.RequestStarted:
		return one(sr.AssigneeIDs, "Your job status: started",
			"Your job has been started. Make sure to keep your client satisfied."), nil

	case event.ServiceRequestCompleted:
		return one(requester, fmt.Sprintf("%s status: completed", feature),
			"Your service has been completed. Make sure to review and rate it."), nil

	case event.RequestCompletedByClient:
		return one(providerUser(parties), fmt.Sprintf("%s: completion accepted", sr.Serial),
			fmt.Sprintf("%s confirmed that %q has been completed.", name, feature)), nil

	case event.ExtraHoursServiceRequest:
		return one(providerUser(parties), fmt.Sprintf("%s is asking for extra service", name),
			"Please check your portal and accept the extra service."), nil

	case event.RequestExtraHoursApproved:
		return one(requester, "Extra service status: approved",
			"Your extra service request has been approved."), nil

	case event.RequestExtraHoursRejected:
		return one(requester, "Extra service status: rejected",
			"Your extra service request has been rejected, please contact support."), nil

	case event.ExtraServiceRequestPaymentDone:
		if sr.ParentID == nil {
			return nil, nil
		}
		parent, err := p.requests.FindByID(ctx, *sr.ParentID)
		if err != nil {
			return nil, fmt.Errorf("tasks: load parent %s: %w", *sr.ParentID, err)
		}
		return one(parent.AssigneeIDs, fmt.Sprintf("%s: extra service paid", name),
			fmt.Sprintf("%s has paid for the extra service. Please do the needed job.", name)), nil
	}

	if logger.Log != nil {
		logger.Log.WithField("kind", ev.Kind).Warn("tasks: неизвестный вид события")
	}
	return nil, nil
}

func one(userIDs []uuid.UUID, title, body string) []service.NotificationMessage {
	return []service.NotificationMessage{{UserIDs: userIDs, Title: title, Body: body}}
}

func providerUser(parties *repository.RequestParties) []uuid.UUID {
	if parties.Provider == nil {
		return nil
	}
	return []uuid.UUID{parties.Provider.UserID}
}

package notifications

import (
	"context"
	"log/slog"

	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/incidents"
)

// OnIncidentEvent fans a lifecycle event out to interested users.
// Failures are logged and counted, never returned.
func (d *Dispatcher) OnIncidentEvent(ctx context.Context, e incidents.Event) {
	inc := e.Incident
	if inc == nil {
		return
	}

	data := RenderData{
		IncidentTitle:  inc.Title,
		Status:         string(inc.Status),
		PreviousStatus: string(e.PreviousStatus),
		Priority:       string(inc.Priority),
		Actor:          e.Actor.Actor(),
		Note:           e.Note,
	}

	var t domain.NotificationType
	var recipients []string

	switch e.Kind {
	case incidents.EventCreated:
		t = domain.NotificationIncidentCreated
		ids, err := d.directory.ListUserIDsByRole(ctx, domain.RoleReviewer, domain.RoleAdmin)
		if err != nil {
			slog.Error("failed to resolve notification recipients", "incident_id", inc.ID, "error", err)
			recordFailure(string(t))
			return
		}
		recipients = ids
	case incidents.EventAssigned:
		t = domain.NotificationIncidentAssigned
		if inc.AssignedToName != nil {
			data.Assignee = *inc.AssignedToName
		}
		recipients = []string{assigneeOf(inc, nil), inc.ReporterID}
	case incidents.EventTransitioned:
		t = domain.NotificationStatusChanged
		recipients = []string{inc.ReporterID, assigneeOf(inc, e.PreviousAssignee)}
	case incidents.EventApproved:
		t = domain.NotificationIncidentApproved
		recipients = []string{inc.ReporterID, assigneeOf(inc, nil)}
	case incidents.EventRejected:
		t = domain.NotificationIncidentRejected
		data.Reason = e.Note
		recipients = []string{inc.ReporterID, assigneeOf(inc, nil)}
	case incidents.EventPriorityChanged:
		t = domain.NotificationPriorityChanged
		data.PreviousPriority = string(e.PreviousPriority)
		recipients = []string{inc.ReporterID, assigneeOf(inc, nil)}
	default:
		return
	}

	incidentID := inc.ID
	d.fanOut(ctx, t, data, &incidentID, recipients, e.Actor.UserID)
}

// OnMessage notifies incident participants about a new user message.
func (d *Dispatcher) OnMessage(ctx context.Context, msg *domain.Message, inc *domain.Incident) {
	if msg == nil || inc == nil || msg.Type != domain.MessageTypeUser {
		return
	}

	data := RenderData{
		IncidentTitle: inc.Title,
		Actor:         msg.UserName,
		Message:       msg.Message,
	}
	incidentID := inc.ID
	d.fanOut(ctx, domain.NotificationNewMessage, data, &incidentID,
		[]string{inc.ReporterID, assigneeOf(inc, nil)}, msg.UserID)
}

func (d *Dispatcher) fanOut(ctx context.Context, t domain.NotificationType, data RenderData, incidentID *string, recipients []string, actorID string) {
	title, message, err := d.renderer.Render(t, data)
	if err != nil {
		slog.Error("failed to render notification", "type", t, "error", err)
		recordFailure(string(t))
		return
	}

	for _, userID := range uniqueRecipients(recipients, actorID) {
		if _, err := d.Notify(ctx, userID, t, Payload{Title: title, Message: message, IncidentID: incidentID}); err != nil {
			slog.Error("failed to write notification",
				"type", t,
				"user_id", userID,
				"error", err,
			)
			recordFailure(string(t))
		}
	}
}

// assigneeOf returns the current assignee, or fallback when the incident
// was just unassigned.
func assigneeOf(inc *domain.Incident, fallback *string) string {
	if inc.AssignedTo != nil {
		return *inc.AssignedTo
	}
	if fallback != nil {
		return *fallback
	}
	return ""
}

func uniqueRecipients(ids []string, actorID string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || id == actorID || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

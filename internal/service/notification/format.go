package notification

import (
	"fmt"
	"strings"

	"github.com/jwalitptl/hospital-api/internal/service/event"
)

type Message struct {
	Title   string
	Content string
}

var formatters = map[event.Type]func(event.Event) Message{
	event.TypeExamination: func(e event.Event) Message {
		content := "Diagnosis: " + e.Diagnosis
		if e.AdditionalInfo != "" {
			content += "\n" + e.AdditionalInfo
		}
		return Message{Title: "Examination completed", Content: content}
	},
	event.TypeAppointment: func(e event.Event) Message {
		content := fmt.Sprintf("Your appointment is now %s.", e.Status)
		if e.Reason != "" {
			content += " Reason: " + e.Reason
		}
		return Message{Title: "Appointment " + e.Status, Content: content}
	},
	event.TypeTestResult: func(e event.Event) Message {
		return Message{
			Title:   "Test result available",
			Content: fmt.Sprintf("%s result: %s", nonEmpty(e.TestType, "Lab test"), e.Result),
		}
	},
	event.TypePrescription: func(e event.Event) Message {
		return Message{Title: "New prescription", Content: "Prescribed: " + e.Medication}
	},
	event.TypeTestRequest: func(e event.Event) Message {
		return Message{
			Title:   "New test request",
			Content: fmt.Sprintf("A %s test has been requested.", nonEmpty(e.TestType, "lab")),
		}
	},
}

// Format renders evt as a user-facing notification.
func Format(evt event.Event) Message {
	if f, ok := formatters[evt.Type]; ok {
		return f(evt)
	}
	return Message{
		Title:   "Notification",
		Content: strings.ReplaceAll(string(evt.Type), "_", " "),
	}
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

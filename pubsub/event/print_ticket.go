package event

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"ticketledger/entity"
)

// The QR image itself is produced by the printing station from data-token.
var ticketTemplate = template.Must(template.New("ticket").Parse(`<html>
	<head>
		<title>Ticket {{.EventType}}</title>
	</head>
	<body>
		<h1>{{.EventType}}</h1>
		<p>{{.EventDate}}</p>
		<div class="qr" data-token="{{.PublicToken}}"></div>
		<p>Adultos: {{.Adults}}  Niños: {{.Children}}</p>
		{{- if .HolderName}}
		<p>{{.HolderName}}</p>
		{{- end}}
	</body>
</html>
`))

func RenderTicket(event entity.TicketIssued) (string, error) {
	var buf bytes.Buffer
	if err := ticketTemplate.Execute(&buf, event); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (h Handler) PrintTicketHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"PrintTicketHandler",
		func(ctx context.Context, event *entity.TicketIssued) error {
			log.FromContext(ctx).WithField("artifact_path", event.ArtifactPath).Info("Printing ticket")

			ticketHTML, err := RenderTicket(*event)
			if err != nil {
				return fmt.Errorf("could not render ticket: %w", err)
			}

			err = h.filesService.UploadFile(ctx, event.ArtifactPath, ticketHTML)
			if err != nil {
				return fmt.Errorf("could not upload ticket: %w", err)
			}

			return h.eventBus.Publish(ctx, entity.TicketPrinted{
				Header:       entity.NewEventHeader(),
				PublicToken:  event.PublicToken,
				ArtifactPath: event.ArtifactPath,
			})
		},
	)
}

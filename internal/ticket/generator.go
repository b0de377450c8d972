package ticket

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"ms-reservation/internal/models"
)

// ticketTemplate is the printable counter-style ticket. Seat and
// waitlist columns are filled per passenger status.
var ticketTemplate = template.Must(template.New("ticket").Funcs(template.FuncMap{
	"upper": strings.ToUpper,
	"inc":   func(i int) int { return i + 1 },
	"placement": func(p models.PassengerOutcome) string {
		switch p.Status {
		case models.StatusConfirmed:
			return p.SeatNumber
		case models.StatusRAC:
			return "RAC"
		case models.StatusWaitlisted:
			return fmt.Sprintf("WL/%d", p.WaitlistPosition)
		default:
			return string(p.Status)
		}
	},
}).Parse(`=========================================================
                 RAILWAY RESERVATION TICKET
=========================================================
PNR: {{.PNR}}                Status: {{upper (printf "%s" .BookingStatus)}}
Train: {{.TrainID}} {{.TrainName}}
Date of Journey: {{.JourneyDate.Format "02 Jan 2006"}}
From: {{.SourceStationName}} ({{.SourceStation}})
To:   {{.DestinationStationName}} ({{.DestinationStation}})
Booked: {{.BookingDate.Format "02 Jan 2006 15:04"}} UTC
---------------------------------------------------------
{{printf "%-3s %-20s %-4s %-10s %-8s %8s" "No" "Name" "Age" "Class" "Seat" "Fare"}}
{{- range $i, $p := .Passengers}}
{{printf "%-3d %-20s %-4d %-10s %-8s %8.2f" (inc $i) $p.Name $p.Age (printf "%s" $p.CoachClass) (placement $p) $p.Fare}}
{{- end}}
---------------------------------------------------------
Total Fare: {{printf "%.2f" .TotalFare}}
=========================================================
`))

// Generator renders booking details into the passenger-facing
// artifacts: a printable text ticket and an encrypted QR image.
type Generator struct {
	QR *QRGenerator
}

func NewGenerator(secret string) *Generator {
	return &Generator{QR: NewQRGenerator(secret)}
}

// RenderText produces the printable ticket.
func (g *Generator) RenderText(details *models.BookingDetails) (string, error) {
	var buf bytes.Buffer
	if err := ticketTemplate.Execute(&buf, details); err != nil {
		return "", fmt.Errorf("rendering ticket for %s: %w", details.PNR, err)
	}
	return buf.String(), nil
}

// RenderQR produces the encrypted QR image for gate scanners.
func (g *Generator) RenderQR(details *models.BookingDetails) ([]byte, error) {
	return g.QR.GenerateEncryptedQR(details)
}

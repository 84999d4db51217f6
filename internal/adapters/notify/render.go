// Package notify renders and delivers applicant notifications.
package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/Voupi/sistema-gestion-addag/internal/domain"
	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/notifier"
)

// Rendered is a ready-to-send email.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

// Branding customises the templates.
type Branding struct {
	OrgName string
	FormURL string
}

// Renderer turns a notifier.Message into a Rendered email.
type Renderer struct {
	branding Branding
	tmpl     *template.Template
}

func NewRenderer(b Branding) (*Renderer, error) {
	if b.OrgName == "" {
		b.OrgName = "ADDAG"
	}
	t, err := template.New("notify").Parse(templates)
	if err != nil {
		return nil, fmt.Errorf("parse notification templates: %w", err)
	}
	return &Renderer{branding: b, tmpl: t}, nil
}

type view struct {
	notifier.TemplateData
	Org       string
	FormURL   string
	CardLabel string
}

func cardLabel(kind domain.RecordKind) string {
	if kind == domain.KindParking {
		return "pase de parqueo"
	}
	return "carné"
}

func (r *Renderer) Render(msg notifier.Message) (Rendered, error) {
	v := view{
		TemplateData: msg.Data,
		Org:          r.branding.OrgName,
		FormURL:      r.branding.FormURL,
		CardLabel:    cardLabel(msg.RecordKind),
	}

	var subject, name string
	switch msg.Kind {
	case notifier.KindConfirmation:
		subject = fmt.Sprintf("[CARNÉ] Confirmación de Solicitud - %s", msg.Data.Name)
		name = "confirmation"
	case notifier.KindReady:
		subject = fmt.Sprintf("[CARNÉ] ¡Tu %s está listo! - %s", v.CardLabel, msg.Data.Name)
		name = "ready"
	case notifier.KindRejected:
		subject = fmt.Sprintf("[CARNÉ] Acción Requerida: Solicitud Observada - %s", msg.Data.Name)
		name = "rejected"
	default:
		return Rendered{}, fmt.Errorf("unknown notification kind %q", msg.Kind)
	}

	var html bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&html, name, v); err != nil {
		return Rendered{}, fmt.Errorf("render %s: %w", name, err)
	}
	return Rendered{
		Subject: subject,
		HTML:    html.String(),
		Text:    plainText(msg.Kind, v),
	}, nil
}

func plainText(kind notifier.Kind, v view) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hola %s,\n\n", v.Name)
	switch kind {
	case notifier.KindConfirmation:
		fmt.Fprintf(&b, "El sistema de %s ha recibido tu solicitud de %s.\n", v.Org, v.CardLabel)
		fmt.Fprintf(&b, "Documento: %s\nTeléfono: %s\nEmail: %s\n", v.DocumentNumber, v.Phone, v.Email)
	case notifier.KindReady:
		fmt.Fprintf(&b, "Tu %s de %s está listo. Puedes pasar a recogerlo en horario hábil.\n", v.CardLabel, v.Org)
		if v.CardNumber != "" {
			fmt.Fprintf(&b, "Número: %s\n", v.CardNumber)
		}
	case notifier.KindRejected:
		fmt.Fprintf(&b, "Revisamos tu solicitud y encontramos un detalle por corregir.\n\nMotivo:\n%s\n", v.Reason)
		if v.FormURL != "" {
			fmt.Fprintf(&b, "\nEnvía una nueva solicitud en %s\n", v.FormURL)
		}
	}
	fmt.Fprintf(&b, "\nSistema de Gestión %s\n", v.Org)
	return b.String()
}

const templates = `
{{define "confirmation"}}<div style="font-family: sans-serif; color: #333; max-width: 600px; margin: 0 auto;">
  <h1 style="color: #1d4ed8;">Solicitud Recibida</h1>
  <p>Hola <strong>{{.Name}}</strong>,</p>
  <p>El sistema de {{.Org}} ha recibido tu solicitud de {{.CardLabel}}.</p>
  <ul>
    <li><strong>Documento:</strong> {{.DocumentNumber}}</li>
    <li><strong>Teléfono:</strong> {{.Phone}}</li>
    <li><strong>Email:</strong> {{.Email}}</li>
  </ul>
  <p><em>Tu fotografía será revisada por nuestro equipo antes de la impresión.</em></p>
  <p>¿Error en tus datos? Responde a este correo indicando el cambio.</p>
  <p style="font-size: 12px; color: #6b7280;">Sistema de Gestión {{.Org}}</p>
</div>{{end}}

{{define "ready"}}<div style="font-family: sans-serif; color: #333; padding: 20px;">
  <h2 style="color: #166534;">¡Buenas noticias!</h2>
  <p>Hola <strong>{{.Name}}</strong>,</p>
  <p>Tu {{.CardLabel}} de {{.Org}} está <strong>listo</strong>{{if .CardNumber}} (No. {{.CardNumber}}){{end}}.</p>
  <p>Puedes pasar a recogerlo en nuestras oficinas en horarios hábiles.</p>
  <p style="font-size: 12px; color: #666;">Sistema de Gestión {{.Org}}</p>
</div>{{end}}

{{define "rejected"}}<div style="font-family: sans-serif; color: #333; max-width: 600px; margin: 0 auto;">
  <h1 style="color: #dc2626;">Solicitud Observada</h1>
  <p>Hola <strong>{{.Name}}</strong>,</p>
  <p>Hemos revisado tu solicitud y encontramos un detalle que necesitamos corregir.</p>
  <div style="border-left: 4px solid #dc2626; padding: 16px;">
    <p style="font-weight: bold;">Motivo:</p>
    <p>{{.Reason}}</p>
  </div>
  <p>Por favor, envía una nueva solicitud corrigiendo este punto.</p>
  {{if .FormURL}}<p><a href="{{.FormURL}}">Llenar Formulario Nuevamente</a></p>{{end}}
  <p style="font-size: 12px; color: #666;">Si tienes dudas, responde a este correo.</p>
</div>{{end}}
`

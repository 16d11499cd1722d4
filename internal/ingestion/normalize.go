package ingestion

import (
	"sort"
	"strings"

	"github.com/mr1hm/go-weather-alerts/internal/models"
	"github.com/mr1hm/go-weather-alerts/internal/nws"
)

// Missing is stored for any field the feed did not provide.
const Missing = "null"

const titleSeparator = " by "

// Normalize converts a raw collection into alerts sorted by ID, descending.
// A collection without features yields an empty, non-nil slice.
func Normalize(data *nws.AlertCollection) []models.Alert {
	alerts := make([]models.Alert, 0)
	if data == nil {
		return alerts
	}

	for _, f := range data.Features {
		if f.Properties == nil {
			continue
		}
		alerts = append(alerts, FormatAlert(f.Properties))
	}

	// IDs compare as strings; equal IDs keep feed order.
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].ID > alerts[j].ID
	})
	return alerts
}

// FormatAlert extracts the fixed field set from one feature's properties.
// Absent fields, including the whole "parameters" object, become Missing.
func FormatAlert(props nws.Properties) models.Alert {
	params := props.Object("parameters")

	ends := text(props, "ends")
	expires := text(props, "expires")

	return models.Alert{
		Area:                text(props, "areaDesc"),
		Certainty:           text(props, "certainty"),
		Description:         text(props, "description"),
		Ends:                ends,
		Event:               text(props, "event"),
		Instruction:         text(props, "instruction"),
		Response:            text(props, "response"),
		Sent:                text(props, "sent"),
		Severity:            text(props, "severity"),
		Title:               title(text(props, "headline")),
		Urgency:             text(props, "urgency"),
		NWSHeadline:         text(params, "NWSheadline"),
		HailSize:            text(params, "hailSize"),
		WindGust:            text(params, "windGust"),
		WaterspoutDetection: text(params, "waterspoutDetection"),
		Effective:           text(props, "effective"),
		Expires:             expires,
		EndsExpires:         endsExpires(ends, expires),
		Onset:               text(props, "onset"),
		Status:              text(props, "status"),
		MessageType:         text(props, "messageType"),
		Category:            text(props, "category"),
		Sender:              text(props, "sender"),
		SenderName:          text(props, "senderName"),
		ID:                  text(props, "id"),
	}
}

func text(props nws.Properties, key string) string {
	if v, ok := props.Text(key); ok {
		return v
	}
	return Missing
}

// title drops the " by <office>" attribution NWS appends to headlines.
func title(headline string) string {
	if i := strings.Index(headline, titleSeparator); i >= 0 {
		return headline[:i]
	}
	return headline
}

func endsExpires(ends, expires string) string {
	if ends != "" && ends != Missing {
		return ends
	}
	if expires != "" {
		return expires
	}
	return Missing
}

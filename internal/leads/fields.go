package leads

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Field names an editable lead attribute. Values match the store column names.
type Field string

const (
	FieldLeadDate           Field = "lead_date"
	FieldName               Field = "name"
	FieldSalespersonName    Field = "salesperson_name"
	FieldLeadSource         Field = "lead_source"
	FieldOtherSource        Field = "other_source"
	FieldPhone              Field = "phone"
	FieldEmail              Field = "email"
	FieldCountry            Field = "country"
	FieldCity               Field = "city"
	FieldClientType         Field = "client_type"
	FieldServicePitch       Field = "service_pitch"
	FieldFirstMessageSent   Field = "first_message_sent"
	FieldReplyReceived      Field = "reply_received"
	FieldSeen               Field = "seen"
	FieldInterested         Field = "interested"
	FieldFollowUpNeeded     Field = "follow_up_needed"
	FieldFollowUpDate       Field = "follow_up_date"
	FieldScreenshotURL      Field = "screenshot_url"
	FieldScreenshotFileName Field = "screenshot_file_name"
	FieldNotes              Field = "notes"
	FieldStatus             Field = "status"
	FieldDealValue          Field = "deal_value"
	FieldReasonLost         Field = "reason_lost"
	FieldOtherReasonLost    Field = "other_reason_lost"
)

// Patch is a set of field edits. Values are JSON-shaped: string, bool, float64 or nil.
type Patch map[Field]any

type fieldSpec struct {
	set func(l *Lead, v any) error
	get func(l Lead) any
}

// fieldOrder is the order patches are applied in. Gate fields (status,
// lead_source, reason_lost, follow_up_needed) come before the fields they gate.
var fieldOrder = []Field{
	FieldLeadDate,
	FieldName,
	FieldSalespersonName,
	FieldLeadSource,
	FieldOtherSource,
	FieldPhone,
	FieldEmail,
	FieldCountry,
	FieldCity,
	FieldClientType,
	FieldServicePitch,
	FieldFirstMessageSent,
	FieldReplyReceived,
	FieldSeen,
	FieldInterested,
	FieldFollowUpNeeded,
	FieldFollowUpDate,
	FieldScreenshotURL,
	FieldScreenshotFileName,
	FieldNotes,
	FieldStatus,
	FieldDealValue,
	FieldReasonLost,
	FieldOtherReasonLost,
}

// Editing one of these on a draft persists it.
var promotionFields = map[Field]bool{
	FieldName:            true,
	FieldSalespersonName: true,
}

var fieldTable = map[Field]fieldSpec{
	FieldLeadDate: {
		set: func(l *Lead, v any) error {
			d, err := asDate(FieldLeadDate, v)
			if err != nil {
				return err
			}
			if d == nil {
				return invalid(FieldLeadDate, "required")
			}
			l.LeadDate = *d
			return nil
		},
		get: func(l Lead) any { return l.LeadDate },
	},
	FieldName:            textField(FieldName, func(l *Lead) *string { return &l.Name }),
	FieldSalespersonName: textField(FieldSalespersonName, func(l *Lead) *string { return &l.SalespersonName }),
	FieldLeadSource: {
		set: func(l *Lead, v any) error {
			s, err := asText(FieldLeadSource, v)
			if err != nil {
				return err
			}
			if !LeadSource(s).Valid() {
				return invalid(FieldLeadSource, "unknown source %q", s)
			}
			l.LeadSource = LeadSource(s)
			return nil
		},
		get: func(l Lead) any { return string(l.LeadSource) },
	},
	FieldOtherSource: {
		set: func(l *Lead, v any) error {
			s, err := asOptText(FieldOtherSource, v)
			if err != nil {
				return err
			}
			if s != nil && l.LeadSource != SourceOther {
				return notApplicable(FieldOtherSource, "lead_source is not other")
			}
			l.OtherSource = s
			return nil
		},
		get: func(l Lead) any { return optString(l.OtherSource) },
	},
	FieldPhone:   textField(FieldPhone, func(l *Lead) *string { return &l.Phone }),
	FieldEmail:   textField(FieldEmail, func(l *Lead) *string { return &l.Email }),
	FieldCountry: textField(FieldCountry, func(l *Lead) *string { return &l.Country }),
	FieldCity:    textField(FieldCity, func(l *Lead) *string { return &l.City }),
	FieldClientType: {
		set: func(l *Lead, v any) error {
			s, err := asText(FieldClientType, v)
			if err != nil {
				return err
			}
			if !ClientType(s).Valid() {
				return invalid(FieldClientType, "unknown client type %q", s)
			}
			l.ClientType = ClientType(s)
			return nil
		},
		get: func(l Lead) any { return string(l.ClientType) },
	},
	FieldServicePitch: {
		set: func(l *Lead, v any) error {
			s, err := asText(FieldServicePitch, v)
			if err != nil {
				return err
			}
			if !ServicePitch(s).Valid() {
				return invalid(FieldServicePitch, "unknown service pitch %q", s)
			}
			l.ServicePitch = ServicePitch(s)
			return nil
		},
		get: func(l Lead) any { return string(l.ServicePitch) },
	},
	FieldFirstMessageSent: boolField(FieldFirstMessageSent, func(l *Lead) *bool { return &l.FirstMessageSent }),
	FieldReplyReceived:    boolField(FieldReplyReceived, func(l *Lead) *bool { return &l.ReplyReceived }),
	FieldSeen:             boolField(FieldSeen, func(l *Lead) *bool { return &l.Seen }),
	FieldInterested:       boolField(FieldInterested, func(l *Lead) *bool { return &l.Interested }),
	FieldFollowUpNeeded:   boolField(FieldFollowUpNeeded, func(l *Lead) *bool { return &l.FollowUpNeeded }),
	FieldFollowUpDate: {
		set: func(l *Lead, v any) error {
			d, err := asDate(FieldFollowUpDate, v)
			if err != nil {
				return err
			}
			if d != nil && !l.FollowUpNeeded {
				return notApplicable(FieldFollowUpDate, "follow_up_needed is false")
			}
			l.FollowUpDate = d
			return nil
		},
		get: func(l Lead) any { return optString(l.FollowUpDate) },
	},
	FieldScreenshotURL: {
		set: func(l *Lead, v any) error {
			s, err := asOptText(FieldScreenshotURL, v)
			if err != nil {
				return err
			}
			l.ScreenshotURL = s
			return nil
		},
		get: func(l Lead) any { return optString(l.ScreenshotURL) },
	},
	FieldScreenshotFileName: {
		set: func(l *Lead, v any) error {
			s, err := asOptText(FieldScreenshotFileName, v)
			if err != nil {
				return err
			}
			l.ScreenshotFileName = s
			return nil
		},
		get: func(l Lead) any { return optString(l.ScreenshotFileName) },
	},
	FieldNotes: textField(FieldNotes, func(l *Lead) *string { return &l.Notes }),
	FieldStatus: {
		// Changing status leaves deal_value and reason_lost as they are;
		// reports only read them for the matching status.
		set: func(l *Lead, v any) error {
			s, err := asText(FieldStatus, v)
			if err != nil {
				return err
			}
			if !LeadStatus(s).Valid() {
				return invalid(FieldStatus, "unknown status %q", s)
			}
			l.Status = LeadStatus(s)
			return nil
		},
		get: func(l Lead) any { return string(l.Status) },
	},
	FieldDealValue: {
		set: func(l *Lead, v any) error {
			f, err := asOptFloat(FieldDealValue, v)
			if err != nil {
				return err
			}
			if f != nil {
				if *f < 0 {
					return invalid(FieldDealValue, "must not be negative")
				}
				if l.Status != StatusClosed {
					return notApplicable(FieldDealValue, "status is not closed")
				}
			}
			l.DealValue = f
			return nil
		},
		get: func(l Lead) any {
			if l.DealValue == nil {
				return nil
			}
			return *l.DealValue
		},
	},
	FieldReasonLost: {
		set: func(l *Lead, v any) error {
			s, err := asOptText(FieldReasonLost, v)
			if err != nil {
				return err
			}
			if s == nil {
				l.ReasonLost = nil
				return nil
			}
			r := ReasonLost(*s)
			if !r.Valid() {
				return invalid(FieldReasonLost, "unknown reason %q", *s)
			}
			if l.Status != StatusLost {
				return notApplicable(FieldReasonLost, "status is not lost")
			}
			l.ReasonLost = &r
			return nil
		},
		get: func(l Lead) any {
			if l.ReasonLost == nil {
				return nil
			}
			return string(*l.ReasonLost)
		},
	},
	FieldOtherReasonLost: {
		set: func(l *Lead, v any) error {
			s, err := asOptText(FieldOtherReasonLost, v)
			if err != nil {
				return err
			}
			if s != nil && (l.ReasonLost == nil || *l.ReasonLost != ReasonOther) {
				return notApplicable(FieldOtherReasonLost, "reason_lost is not other")
			}
			l.OtherReasonLost = s
			return nil
		},
		get: func(l Lead) any { return optString(l.OtherReasonLost) },
	},
}

// ParseField validates a field name coming from a client.
func ParseField(name string) (Field, error) {
	f := Field(strings.TrimSpace(name))
	if _, ok := fieldTable[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return f, nil
}

// Promotes reports whether editing f on a draft persists the draft.
func (f Field) Promotes() bool { return promotionFields[f] }

// Apply sets field f on l after coercing and validating v.
// l is left untouched on error.
func (l *Lead) Apply(f Field, v any) error {
	spec, ok := fieldTable[f]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, f)
	}
	next := l.clone()
	if err := spec.set(&next, v); err != nil {
		return err
	}
	*l = next
	return nil
}

// ApplyPatch applies every edit in p in field order. l is left untouched on error.
func (l *Lead) ApplyPatch(p Patch) error {
	for f := range p {
		if _, ok := fieldTable[f]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownField, f)
		}
	}
	next := l.clone()
	for _, f := range fieldOrder {
		v, ok := p[f]
		if !ok {
			continue
		}
		if err := fieldTable[f].set(&next, v); err != nil {
			return err
		}
	}
	*l = next
	return nil
}

// Value returns the normalized value of f, the shape sent to the store.
func (l Lead) Value(f Field) any {
	spec, ok := fieldTable[f]
	if !ok {
		return nil
	}
	return spec.get(l)
}

func textField(f Field, ptr func(l *Lead) *string) fieldSpec {
	return fieldSpec{
		set: func(l *Lead, v any) error {
			s, err := asText(f, v)
			if err != nil {
				return err
			}
			*ptr(l) = s
			return nil
		},
		get: func(l Lead) any { return *ptr(&l) },
	}
}

func boolField(f Field, ptr func(l *Lead) *bool) fieldSpec {
	return fieldSpec{
		set: func(l *Lead, v any) error {
			b, ok := v.(bool)
			if !ok {
				return invalid(f, "expected boolean, got %T", v)
			}
			*ptr(l) = b
			return nil
		},
		get: func(l Lead) any { return *ptr(&l) },
	}
}

func asText(f Field, v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	default:
		return "", invalid(f, "expected string, got %T", v)
	}
}

func asOptText(f Field, v any) (*string, error) {
	s, err := asText(f, v)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return &s, nil
}

func asDate(f Field, v any) (*string, error) {
	s, err := asOptText(f, v)
	if err != nil || s == nil {
		return nil, err
	}
	if _, err := time.Parse(DateLayout, *s); err != nil {
		return nil, invalid(f, "expected YYYY-MM-DD, got %q", *s)
	}
	return s, nil
}

func asOptFloat(f Field, v any) (*float64, error) {
	var out float64
	switch t := v.(type) {
	case nil:
		return nil, nil
	case float64:
		out = t
	case float32:
		out = float64(t)
	case int:
		out = float64(t)
	case int64:
		out = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return nil, invalid(f, "expected number, got %q", t.String())
		}
		out = n
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, nil
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil, invalid(f, "expected number, got %q", t)
		}
		out = n
	default:
		return nil, invalid(f, "expected number, got %T", v)
	}
	return &out, nil
}

func optString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func invalid(f Field, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidValue, f, fmt.Sprintf(format, args...))
}

func notApplicable(f Field, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrFieldNotApplicable, f, reason)
}

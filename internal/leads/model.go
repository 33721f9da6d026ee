package leads

import (
	"strings"
	"time"
)

// StatusNew is the only status assigned by the intake pipeline.
const StatusNew = "new"

// Lead is one persisted contact form submission with its attribution data.
type Lead struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Company     *string   `json:"company"`
	Message     string    `json:"message"`
	IP          *string   `json:"ip"`
	Status      string    `json:"status"`
	Source      string    `json:"source"`
	UTMSource   *string   `json:"utm_source"`
	UTMMedium   *string   `json:"utm_medium"`
	UTMCampaign *string   `json:"utm_campaign"`
	Referrer    *string   `json:"referrer"`
	UserAgent   *string   `json:"user_agent"`
	DeviceType  *string   `json:"device_type"`
	Country     *string   `json:"country"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateLeadRequest carries a validated submission and its tracking data to
// a Repository.
type CreateLeadRequest struct {
	Name        string
	Email       string
	Company     *string
	Message     string
	IP          *string
	Source      string
	UTMSource   *string
	UTMMedium   *string
	UTMCampaign *string
	Referrer    *string
	UserAgent   *string
	DeviceType  *string
	Country     *string
}

// Validate checks the fields a repository cannot store without.
func (r *CreateLeadRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrInvalidName
	}
	if strings.TrimSpace(r.Email) == "" {
		return ErrMissingEmail
	}
	if strings.TrimSpace(r.Message) == "" {
		return ErrMissingMessage
	}
	return nil
}

func (r *CreateLeadRequest) toLead(id string, createdAt time.Time) *Lead {
	return &Lead{
		ID:          id,
		Name:        r.Name,
		Email:       r.Email,
		Company:     r.Company,
		Message:     r.Message,
		IP:          r.IP,
		Status:      StatusNew,
		Source:      r.Source,
		UTMSource:   r.UTMSource,
		UTMMedium:   r.UTMMedium,
		UTMCampaign: r.UTMCampaign,
		Referrer:    r.Referrer,
		UserAgent:   r.UserAgent,
		DeviceType:  r.DeviceType,
		Country:     r.Country,
		CreatedAt:   createdAt,
	}
}

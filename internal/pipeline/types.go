package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	batchdomain "github.com/smallbiznis/renewly/internal/batch/domain"
	"github.com/smallbiznis/renewly/internal/calendar"
)

// Tenant identifies the account a run belongs to. Name appears in rendered messages.
type Tenant struct {
	ID   snowflake.ID
	Name string
}

// MemberRecord is one validated row from the caller's upload.
type MemberRecord struct {
	CustomerName string
	PhoneNumber  string
	StartDate    time.Time
	EndDate      time.Time
}

// MemberInput is the wire form of MemberRecord with YYYY-MM-DD dates.
type MemberInput struct {
	CustomerName          string `json:"customer_name" binding:"required"`
	PhoneNumber           string `json:"phone_number" binding:"required"`
	SubscriptionStartDate string `json:"subscription_start_date" binding:"required"`
	SubscriptionEndDate   string `json:"subscription_end_date" binding:"required"`
}

// ToRecords parses wire rows. A row with an unparseable date violates the input contract.
func ToRecords(inputs []MemberInput) ([]MemberRecord, error) {
	records := make([]MemberRecord, 0, len(inputs))
	for i, in := range inputs {
		start, err := calendar.ParseDate(in.SubscriptionStartDate)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d start date: %v", ErrInputContract, i, err)
		}
		end, err := calendar.ParseDate(in.SubscriptionEndDate)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d end date: %v", ErrInputContract, i, err)
		}
		records = append(records, MemberRecord{
			CustomerName: strings.TrimSpace(in.CustomerName),
			PhoneNumber:  strings.TrimSpace(in.PhoneNumber),
			StartDate:    start,
			EndDate:      end,
		})
	}
	return records, nil
}

type RunRequest struct {
	Tenant      Tenant
	SourceLabel string
	Members     []MemberRecord
}

// remainingMember is the output of the compute stage.
type remainingMember struct {
	MemberRecord
	DaysRemaining int
}

// ClassifiedMember is a member that survived filtering, with its tier.
type ClassifiedMember struct {
	MemberRecord
	DaysRemaining int
	Tier          calendar.Tier
}

// Result describes a committed run.
type Result struct {
	BatchID         string                        `json:"batch_id"`
	ReferenceDate   time.Time                     `json:"reference_date"`
	TotalRows       int                           `json:"total_rows"`
	MemberCount     int                           `json:"member_count"`
	Excluded        int                           `json:"excluded"`
	TierCounts      calendar.TierCounts           `json:"tier_counts"`
	Messages        []batchdomain.OutboundMessage `json:"messages"`
	HistoryRecorded bool                          `json:"history_recorded"`
}

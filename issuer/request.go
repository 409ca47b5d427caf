package issuer

import (
	"strconv"
	"strings"
	"time"

	"ticketledger/entity"
)

// TicketRequest is raw operator input, exactly as typed into a form or CLI.
type TicketRequest struct {
	EventType  string
	Date       string
	Adults     string
	Children   string
	HolderName string
}

type ValidTicket struct {
	EventType  string
	Date       string
	Adults     int
	Children   int
	HolderName string
}

// ValidateRequest checks every constraint and reports all violations together.
func ValidateRequest(eventTypes []string, req TicketRequest) (ValidTicket, error) {
	var problems []string

	valid := ValidTicket{
		EventType:  req.EventType,
		Date:       strings.TrimSpace(req.Date),
		HolderName: strings.TrimSpace(req.HolderName),
	}

	if !contains(eventTypes, req.EventType) {
		problems = append(problems, "Invalid event type.")
	}

	var problem string
	valid.Adults, problem = parseCount("Adults", req.Adults)
	if problem != "" {
		problems = append(problems, problem)
	}
	valid.Children, problem = parseCount("Children", req.Children)
	if problem != "" {
		problems = append(problems, problem)
	}

	if _, err := time.Parse(entity.DateLayout, valid.Date); err != nil {
		problems = append(problems, "Date must be in YYYY-MM-DD format.")
	}

	if len(problems) > 0 {
		return ValidTicket{}, &entity.ValidationError{Problems: problems}
	}

	return valid, nil
}

func parseCount(field, value string) (int, string) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, field + " must be an integer."
	}
	if n < 0 {
		return 0, field + " must be 0 or more."
	}
	return n, ""
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}

// Package assistant implements the practice's front-desk chat assistant.
// A fixed, ordered set of intent rules answers the common questions
// (scheduling, availability, insurance, services, hours, emergencies);
// anything else is delegated to a Responder when one is configured.
package assistant

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Entities holds the values extracted from the caller's text for one intent.
type Entities map[string]string

// Result is the assistant's structured answer for one message.
type Result struct {
	Intent   string   `json:"intent"`
	Entities Entities `json:"entities"`
	Response string   `json:"response"`
}

// Intent names, in priority order. The first matching rule wins, so a
// message mentioning both pain and insurance is still an insurance inquiry
// only if no scheduling pattern fired first.
const (
	IntentSchedule     = "schedule_appointment"
	IntentAvailability = "check_availability"
	IntentInsurance    = "insurance_inquiry"
	IntentService      = "service_inquiry"
	IntentHours        = "office_hours"
	IntentEmergency    = "emergency"
	IntentGeneral      = "general_inquiry"
)

type rule struct {
	name     string
	patterns []*regexp.Regexp
	respond  func(e *Engine, ent Entities) string
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

var serviceKeywords = []string{"root canal", "cleaning", "filling", "whitening", "checkup", "implant", "emergency"}

var urgencyWords = []string{"severe", "bad", "terrible", "excruciating", "unbearable"}

var datePatterns = compileAll(
	`(today|tomorrow|next\s+\w+)`,
	`(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})`,
	`(monday|tuesday|wednesday|thursday|friday|saturday|sunday)`,
	`(morning|afternoon|evening|night)`,
)

type Engine struct {
	info      Info
	responder Responder
	rules     []rule
}

// NewEngine builds the rule set around the practice info. responder may be
// nil; general inquiries then get a static answer.
func NewEngine(info Info, responder Responder) *Engine {
	e := &Engine{info: info, responder: responder}
	e.rules = []rule{
		{
			name: IntentSchedule,
			patterns: compileAll(
				`(schedule|book|make)\s+(an?\s+)?appointment`,
				`(want|need)\s+(to\s+)?(schedule|book)\s+(an?\s+)?appointment`,
				`appointment\s+(for|on)\s+(\w+)`,
			),
			respond: (*Engine).scheduleResponse,
		},
		{
			name: IntentAvailability,
			patterns: compileAll(
				`(available|open|free)\s+(time|slot|appointment)`,
				`(what|when)\s+(are|do)\s+(you|they)\s+(have|available)`,
				`(next|upcoming)\s+(available|open)\s+(time|slot)`,
			),
			respond: (*Engine).availabilityResponse,
		},
		{
			name: IntentInsurance,
			patterns: compileAll(
				`(accept|take|work\s+with)\s+(insurance|coverage)`,
				`(what|which)\s+(insurance|provider)s?\s+(do\s+you|are\s+accepted)`,
				`(my|the)\s+(insurance|provider)\s+(is|are)`,
				`(coverage|benefits)\s+(for|of)`,
			),
			respond: (*Engine).insuranceResponse,
		},
		{
			name: IntentService,
			patterns: compileAll(
				`(what|which)\s+(services|treatments)\s+(do\s+you|are\s+offered)`,
				`(cost|price|how\s+much)\s+(for|is)\s+(\w+)`,
				`(cleaning|filling|whitening|checkup)\s+(cost|price)`,
			),
			respond: (*Engine).serviceResponse,
		},
		{
			name: IntentHours,
			patterns: compileAll(
				`(what|when)\s+(are|do)\s+(you|they)\s+(open|close)`,
				`(hours|schedule)\s+of\s+operation`,
				`office\s+hours`,
				`(open|closed)\s+(on|during)`,
			),
			respond: (*Engine).hoursResponse,
		},
		{
			name: IntentEmergency,
			patterns: compileAll(
				`(emergency|urgent|pain|hurt)`,
				`(broken|cracked|chipped)\s+(tooth|teeth)`,
				`(severe|bad|terrible)\s+(pain|ache)`,
			),
			respond: (*Engine).emergencyResponse,
		},
	}
	return e
}

func (e *Engine) Info() Info { return e.info }

// Process classifies the message, extracts entities and produces a reply.
// Unmatched messages go to the Responder; a Responder failure falls back to
// an apology carrying the office phone number.
func (e *Engine) Process(ctx context.Context, text string, history []Message) Result {
	lowered := strings.ToLower(strings.TrimSpace(text))

	for _, r := range e.rules {
		for _, p := range r.patterns {
			if p.MatchString(lowered) {
				ent := extractEntities(lowered, r.name)
				return Result{
					Intent:   r.name,
					Entities: ent,
					Response: r.respond(e, ent),
				}
			}
		}
	}

	ent := Entities{"original_text": lowered, "query": lowered}
	return Result{
		Intent:   IntentGeneral,
		Entities: ent,
		Response: e.generalResponse(ctx, text, history, ent),
	}
}

func extractEntities(text, intent string) Entities {
	ent := Entities{"original_text": text}

	switch intent {
	case IntentSchedule, IntentAvailability:
		for _, p := range datePatterns {
			if m := p.FindString(text); m != "" {
				ent["preferred_time"] = m
				break
			}
		}
		fallthrough
	case IntentService:
		for _, s := range serviceKeywords {
			if strings.Contains(text, s) {
				ent["service_type"] = s
				break
			}
		}
	case IntentInsurance:
		for _, provider := range AcceptedInsurance() {
			if strings.Contains(text, strings.ToLower(provider)) {
				ent["insurance_provider"] = provider
				break
			}
		}
		// "blue cross" alone is common shorthand
		if _, ok := ent["insurance_provider"]; !ok && strings.Contains(text, "blue cross") {
			ent["insurance_provider"] = "Blue Cross Blue Shield"
		}
	case IntentEmergency:
		ent["urgency_level"] = "medium"
		for _, w := range urgencyWords {
			if strings.Contains(text, w) {
				ent["urgency_level"] = "high"
				break
			}
		}
	}
	return ent
}

func (e *Engine) scheduleResponse(ent Entities) string {
	service := ent["service_type"]
	if service == "" {
		service = "appointment"
	} else {
		service += " appointment"
	}
	response := fmt.Sprintf("I'd be happy to help you schedule a %s.", service)
	if t := ent["preferred_time"]; t != "" {
		response += fmt.Sprintf(" You mentioned %s.", t)
	}
	return response + " Let me check our available slots. What's your preferred date and time?"
}

func (e *Engine) availabilityResponse(ent Entities) string {
	return "I can check our available appointment slots for you. What date are you looking for?"
}

func (e *Engine) insuranceResponse(ent Entities) string {
	if provider := ent["insurance_provider"]; provider != "" {
		return fmt.Sprintf("Yes, we do accept %s insurance. Would you like me to check your specific coverage?", provider)
	}
	carriers := e.info.Insurance
	if len(carriers) > 6 {
		carriers = carriers[:6]
	}
	return fmt.Sprintf("We accept most major insurance providers including %s. Which provider do you have?",
		strings.Join(carriers, ", "))
}

func (e *Engine) serviceResponse(ent Entities) string {
	if service := ent["service_type"]; service != "" {
		return fmt.Sprintf("For %s, our prices typically range from $100 to $500 depending on the specific "+
			"treatment needed. Would you like me to schedule a consultation to get a more accurate estimate?", service)
	}
	return "We offer a wide range of dental services including cleanings, fillings, root canals, " +
		"teeth whitening, and emergency care. Which service are you interested in?"
}

func (e *Engine) hoursResponse(ent Entities) string {
	var b strings.Builder
	b.WriteString("Our office hours are ")
	days := []time.Weekday{
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
		time.Friday, time.Saturday, time.Sunday,
	}
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, fmt.Sprintf("%s %s", d, e.info.Hours.For(d).String()))
	}
	b.WriteString(strings.Join(parts, ", "))
	b.WriteString(". We also offer emergency appointments outside of regular hours.")
	return b.String()
}

func (e *Engine) emergencyResponse(ent Entities) string {
	if ent["urgency_level"] == "high" {
		return fmt.Sprintf("I understand this is an emergency. Please call our emergency line at %s "+
			"immediately, or if it's after hours, call %s for urgent dental care.",
			e.info.Phone, e.info.AfterHoursPhone)
	}
	return "I can help you schedule an emergency appointment. How soon do you need to be seen?"
}

func (e *Engine) generalResponse(ctx context.Context, text string, history []Message, ent Entities) string {
	if e.responder != nil {
		reply, err := e.responder.Reply(ctx, text, history)
		if err == nil && reply != "" {
			return reply
		}
		return fmt.Sprintf("I'm sorry, I'm having trouble answering that right now. "+
			"Please call our office at %s and we'll be glad to help.", e.info.Phone)
	}

	query := ent["query"]
	switch {
	case strings.Contains(query, "appointment") || strings.Contains(query, "book"):
		return "I can help you with appointment scheduling. Would you like to book an appointment?"
	case strings.Contains(query, "insurance") || strings.Contains(query, "coverage"):
		return "I can help you with insurance questions. What would you like to know about your coverage?"
	}
	return "I'm here to help with your dental care needs. How can I assist you today?"
}

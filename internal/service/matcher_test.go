package service

import (
	"testing"

	"github.com/guestdesk/backend/internal/models"
)

func TestMatchKeywordsCaseInsensitive(t *testing.T) {
	if !MatchKeywords([]string{"WiFi"}, "请问有wifi吗") {
		t.Fatalf("expected WiFi to match wifi")
	}
	if !MatchKeywords([]string{"漏水", "维修"}, "房间漏水了") {
		t.Fatalf("expected 漏水 to match")
	}
	if MatchKeywords([]string{"空调"}, "房间漏水了") {
		t.Fatalf("expected no match")
	}
}

func TestMatchKeywordsEmptyListNeverMatches(t *testing.T) {
	if MatchKeywords(nil, "anything") {
		t.Fatalf("empty keyword list must never match")
	}
	if MatchKeywords([]string{""}, "anything") {
		t.Fatalf("blank keyword must never match")
	}
}

func TestMatchesTicketByType(t *testing.T) {
	ticket := models.Ticket{Title: "房间漏水", Description: "水从天花板滴下", Category: "maintenance", Priority: "P2"}

	if !MatchesTicket(models.RoutingRule{RuleType: models.RuleTypeKeyword, Keywords: []string{"漏水"}}, ticket) {
		t.Fatalf("keyword rule should match title")
	}
	if !MatchesTicket(models.RoutingRule{RuleType: models.RuleTypeKeyword, Keywords: []string{"天花板"}}, ticket) {
		t.Fatalf("keyword rule should match description")
	}
	if !MatchesTicket(models.RoutingRule{RuleType: models.RuleTypeCategory, Category: "maintenance"}, ticket) {
		t.Fatalf("category rule should match")
	}
	if MatchesTicket(models.RoutingRule{RuleType: models.RuleTypeCategory, Category: "Maintenance"}, ticket) {
		t.Fatalf("category comparison is case-sensitive")
	}
	if !MatchesTicket(models.RoutingRule{RuleType: models.RuleTypePriority, Priority: "P2"}, ticket) {
		t.Fatalf("priority rule should match")
	}
	if !MatchesTicket(models.RoutingRule{RuleType: models.RuleTypeManual}, ticket) {
		t.Fatalf("manual rule always matches a ticket")
	}
	if MatchesTicket(models.RoutingRule{RuleType: models.RuleTypeRoundRobin}, ticket) {
		t.Fatalf("round_robin rules have no content predicate")
	}
}

func TestMatchesMessageKeywordOnly(t *testing.T) {
	if !MatchesMessage(models.RoutingRule{RuleType: models.RuleTypeKeyword, Keywords: []string{"投诉"}}, "我要投诉") {
		t.Fatalf("keyword rule should match message content")
	}
	for _, rt := range []models.RuleType{models.RuleTypeCategory, models.RuleTypePriority, models.RuleTypeManual, models.RuleTypeRoundRobin} {
		if MatchesMessage(models.RoutingRule{RuleType: rt, Category: "", Priority: ""}, "我要投诉") {
			t.Fatalf("rule type %s must not match a bare message", rt)
		}
	}
}

func TestMatchesPreviewOptionalFields(t *testing.T) {
	catRule := models.RoutingRule{RuleType: models.RuleTypeCategory, Category: "complaint"}
	if MatchesPreview(catRule, "text", "", "") {
		t.Fatalf("category rule must not match when no category provided")
	}
	if !MatchesPreview(catRule, "text", "complaint", "") {
		t.Fatalf("category rule should match provided category")
	}

	priRule := models.RoutingRule{RuleType: models.RuleTypePriority, Priority: "P1"}
	if MatchesPreview(priRule, "text", "", "") {
		t.Fatalf("priority rule must not match when no priority provided")
	}
	if !MatchesPreview(priRule, "text", "", "P1") {
		t.Fatalf("priority rule should match provided priority")
	}

	if !MatchesPreview(models.RoutingRule{RuleType: models.RuleTypeManual}, "text", "", "") {
		t.Fatalf("manual rule always matches in preview")
	}
}

func TestMatchesTriggerKeywordOnly(t *testing.T) {
	if !MatchesTrigger(models.AutoTicketRule{TriggerType: models.TriggerTypeKeyword, Keywords: []string{"维修"}}, "需要维修") {
		t.Fatalf("keyword trigger should fire")
	}
	for _, tt := range []models.TriggerType{models.TriggerTypeCategory, models.TriggerTypeUnresponded, models.TriggerTypeTimeBased} {
		if MatchesTrigger(models.AutoTicketRule{TriggerType: tt, Keywords: []string{"维修"}}, "需要维修") {
			t.Fatalf("trigger type %s is not implemented and must not fire", tt)
		}
	}
}

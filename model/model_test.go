package model

import (
	"errors"
	"testing"
	"time"
)

func TestIncidentCreateDefaults(t *testing.T) {
	in := IncidentCreate{IncidentType: "fire", FullName: "Juan", Description: "smoke", Timestamp: "2024-09-01T08:00:00Z"}
	if err := in.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	now := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	inc := in.Incident(now)
	if inc.ID == "" || inc.Status != IncidentSubmitted || inc.Priority != PriorityMedium {
		t.Fatalf("Incident() = %+v", inc)
	}
	if inc.Images == nil {
		t.Fatalf("Images should default to an empty slice")
	}
}

func TestIncidentCreateValidate(t *testing.T) {
	if err := (IncidentCreate{FullName: "x"}).Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("Validate() error = %v, want ErrInvalid", err)
	}
}

func TestIncidentUpdateApply(t *testing.T) {
	var u IncidentUpdate
	if !u.Empty() {
		t.Fatalf("zero update should be empty")
	}
	status, who := "in_progress", "team-a"
	u = IncidentUpdate{Status: &status, AssignedTo: &who}
	inc := Incident{Status: IncidentSubmitted, Priority: PriorityMedium}
	u.Apply(&inc, time.Now())
	if inc.Status != status || *inc.AssignedTo != who || inc.Priority != PriorityMedium || inc.UpdatedAt == nil {
		t.Fatalf("Apply() = %+v", inc)
	}
}

func TestTyphoonUpdateApply(t *testing.T) {
	if !(TyphoonUpdate{}).Empty() {
		t.Fatalf("zero update should be empty")
	}
	name, wind := "Karding", 185
	u := TyphoonUpdate{Name: &name, WindSpeed: &wind}
	ty := (TyphoonCreate{Name: "Noru", Category: "STY", AsOf: "now"}).Typhoon("admin", time.Now())
	u.Apply(&ty, "editor", time.Now())
	if ty.Name != name || ty.WindSpeed != wind || ty.UpdatedBy != "editor" || ty.CreatedBy != "admin" {
		t.Fatalf("Apply() = %+v", ty)
	}
	if ty.Status != TyphoonActive || ty.TrackingPath == nil {
		t.Fatalf("Typhoon() defaults = %+v", ty)
	}
}

func TestPreferencesAllows(t *testing.T) {
	p := DefaultPreferences()
	p.Typhoons = false
	if !p.Allows(NotifyIncidents) || p.Allows(NotifyTyphoons) || p.Allows(NotifyGeneral) {
		t.Fatalf("Allows() mismatch for %+v", p)
	}
}

func TestNotificationSendDefaults(t *testing.T) {
	n := NotificationSend{Title: "Evacuate", Body: "Now"}
	if err := n.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if n.Icon != DefaultNotificationIcon || n.NotificationType != NotifyGeneral || n.Data == nil {
		t.Fatalf("defaults not applied: %+v", n)
	}
}

func TestLocationGeotagged(t *testing.T) {
	var l *Location
	if l.Geotagged() {
		t.Fatalf("nil location reported geotagged")
	}
	if !(&Location{Lat: 13.1, Lon: 123.7}).Geotagged() {
		t.Fatalf("location with coordinates not geotagged")
	}
}

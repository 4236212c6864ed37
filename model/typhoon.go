package model

import (
	"fmt"
	"time"
)

const (
	TyphoonActive   = "active"
	TyphoonInactive = "inactive"
)

// TrackingPoint is one observed position on a typhoon's path.
type TrackingPoint struct {
	Lat       float64 `json:"lat" bson:"lat"`
	Lon       float64 `json:"lon" bson:"lon"`
	Time      string  `json:"time" bson:"time"`
	WindSpeed *int    `json:"windSpeed,omitempty" bson:"windSpeed,omitempty"`
	Pressure  *int    `json:"pressure,omitempty" bson:"pressure,omitempty"`
}

// Validate checks required fields.
func (p TrackingPoint) Validate() error {
	if p.Time == "" {
		return fmt.Errorf("%w: time is required", ErrInvalid)
	}
	return nil
}

// Forecast is a predicted position and intensity.
type Forecast struct {
	Time      string   `json:"time" bson:"time"`
	WindSpeed int      `json:"windSpeed" bson:"windSpeed"`
	Pressure  int      `json:"pressure" bson:"pressure"`
	Location  Location `json:"location" bson:"location"`
	Intensity string   `json:"intensity" bson:"intensity"`
}

// Typhoon is a tracked storm bulletin.
type Typhoon struct {
	ID            string          `json:"id" bson:"id"`
	Name          string          `json:"name" bson:"name"`
	Category      string          `json:"category" bson:"category"`
	AsOf          string          `json:"as_of" bson:"as_of"`
	NearLocation  string          `json:"near_location" bson:"near_location"`
	WindSpeed     int             `json:"windSpeed" bson:"windSpeed"`
	Pressure      int             `json:"pressure" bson:"pressure"`
	Location      Location        `json:"location" bson:"location"`
	Direction     string          `json:"direction" bson:"direction"`
	Speed         int             `json:"speed" bson:"speed"`
	Status        string          `json:"status" bson:"status"`
	Description   string          `json:"description" bson:"description"`
	AffectedAreas []string        `json:"affectedAreas" bson:"affectedAreas"`
	Warnings      []string        `json:"warnings" bson:"warnings"`
	Preparedness  []string        `json:"preparedness" bson:"preparedness"`
	TrackingPath  []TrackingPoint `json:"trackingPath" bson:"trackingPath"`
	Forecast      []Forecast      `json:"forecast" bson:"forecast"`
	TotalDistance int             `json:"totalDistance" bson:"totalDistance"`
	TrackingTime  int             `json:"trackingTime" bson:"trackingTime"`
	CreatedAt     time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt     *time.Time      `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
	CreatedBy     string          `json:"created_by,omitempty" bson:"created_by,omitempty"`
	UpdatedBy     string          `json:"updated_by,omitempty" bson:"updated_by,omitempty"`
}

// TyphoonCreate is the body accepted when publishing a typhoon.
type TyphoonCreate struct {
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	AsOf          string          `json:"as_of"`
	NearLocation  string          `json:"near_location"`
	WindSpeed     int             `json:"windSpeed"`
	Pressure      int             `json:"pressure"`
	Location      Location        `json:"location"`
	Direction     string          `json:"direction"`
	Speed         int             `json:"speed"`
	Description   string          `json:"description"`
	AffectedAreas []string        `json:"affectedAreas"`
	Warnings      []string        `json:"warnings"`
	Preparedness  []string        `json:"preparedness"`
	TrackingPath  []TrackingPoint `json:"trackingPath"`
	Forecast      []Forecast      `json:"forecast"`
	TotalDistance int             `json:"totalDistance"`
	TrackingTime  int             `json:"trackingTime"`
}

// Validate checks required fields.
func (in TyphoonCreate) Validate() error {
	switch {
	case in.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalid)
	case in.Category == "":
		return fmt.Errorf("%w: category is required", ErrInvalid)
	case in.AsOf == "":
		return fmt.Errorf("%w: as_of is required", ErrInvalid)
	}
	for _, p := range in.TrackingPath {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Typhoon materialises an active record created by author.
func (in TyphoonCreate) Typhoon(author string, now time.Time) Typhoon {
	return Typhoon{
		ID:            NewID(),
		Name:          in.Name,
		Category:      in.Category,
		AsOf:          in.AsOf,
		NearLocation:  in.NearLocation,
		WindSpeed:     in.WindSpeed,
		Pressure:      in.Pressure,
		Location:      in.Location,
		Direction:     in.Direction,
		Speed:         in.Speed,
		Status:        TyphoonActive,
		Description:   in.Description,
		AffectedAreas: nonNil(in.AffectedAreas),
		Warnings:      nonNil(in.Warnings),
		Preparedness:  nonNil(in.Preparedness),
		TrackingPath:  nonNil(in.TrackingPath),
		Forecast:      nonNil(in.Forecast),
		TotalDistance: in.TotalDistance,
		TrackingTime:  in.TrackingTime,
		CreatedAt:     now,
		CreatedBy:     author,
	}
}

// TyphoonUpdate is a partial update; nil fields are left untouched.
type TyphoonUpdate struct {
	Name          *string          `json:"name"`
	Category      *string          `json:"category"`
	AsOf          *string          `json:"as_of"`
	NearLocation  *string          `json:"near_location"`
	WindSpeed     *int             `json:"windSpeed"`
	Pressure      *int             `json:"pressure"`
	Location      *Location        `json:"location"`
	Direction     *string          `json:"direction"`
	Speed         *int             `json:"speed"`
	Status        *string          `json:"status"`
	Description   *string          `json:"description"`
	AffectedAreas *[]string        `json:"affectedAreas"`
	Warnings      *[]string        `json:"warnings"`
	Preparedness  *[]string        `json:"preparedness"`
	TrackingPath  *[]TrackingPoint `json:"trackingPath"`
	Forecast      *[]Forecast      `json:"forecast"`
	TotalDistance *int             `json:"totalDistance"`
	TrackingTime  *int             `json:"trackingTime"`
}

// Empty reports whether no field is set.
func (u TyphoonUpdate) Empty() bool {
	return u == TyphoonUpdate{}
}

// Apply copies set fields onto t and stamps the editor.
func (u TyphoonUpdate) Apply(t *Typhoon, editor string, now time.Time) {
	setIf(&t.Name, u.Name)
	setIf(&t.Category, u.Category)
	setIf(&t.AsOf, u.AsOf)
	setIf(&t.NearLocation, u.NearLocation)
	setIf(&t.WindSpeed, u.WindSpeed)
	setIf(&t.Pressure, u.Pressure)
	setIf(&t.Location, u.Location)
	setIf(&t.Direction, u.Direction)
	setIf(&t.Speed, u.Speed)
	setIf(&t.Status, u.Status)
	setIf(&t.Description, u.Description)
	setIf(&t.AffectedAreas, u.AffectedAreas)
	setIf(&t.Warnings, u.Warnings)
	setIf(&t.Preparedness, u.Preparedness)
	setIf(&t.TrackingPath, u.TrackingPath)
	setIf(&t.Forecast, u.Forecast)
	setIf(&t.TotalDistance, u.TotalDistance)
	setIf(&t.TrackingTime, u.TrackingTime)
	t.UpdatedAt = &now
	t.UpdatedBy = editor
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

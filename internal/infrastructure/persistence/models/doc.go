// Package models contains GORM persistence models that map the billing
// domain aggregates to database tables. Models are kept separate from
// domain entities so schema concerns never leak into the domain layer.
package models

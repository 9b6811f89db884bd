package model

import "fmt"

// TranscriptRecord is the outcome of one transcription. CleanedText equals
// RawText when cleaning was not requested.
type TranscriptRecord struct {
	RawText         string `json:"original_transcript"`
	CleanedText     string `json:"transcript"`
	CleaningApplied bool   `json:"cleaned"`
}

// Metadata describes the document author. Empty fields get defaults from
// WithDefaults.
type Metadata struct {
	Author      string `json:"author"`
	Institution string `json:"institution"`
	Title       string `json:"title"`
	// Date overrides the generation date (dd/mm/yyyy).
	Date string `json:"date,omitempty"`
}

const (
	DefaultAuthor      = "Studente"
	DefaultInstitution = "Università"
	DefaultTitle       = "Relazione di Laboratorio"
)

// WithDefaults fills empty fields. date is used when m.Date is empty.
func (m Metadata) WithDefaults(date string) Metadata {
	if m.Author == "" {
		m.Author = DefaultAuthor
	}
	if m.Institution == "" {
		m.Institution = DefaultInstitution
	}
	if m.Title == "" {
		m.Title = DefaultTitle
	}
	if m.Date == "" {
		m.Date = date
	}
	return m
}

// ReportRequest is the input of report generation.
type ReportRequest struct {
	Transcript string   `json:"transcript"`
	TemplateID string   `json:"templateId"`
	Metadata   Metadata `json:"metadata"`
}

// Generation methods reported back to callers.
const (
	MethodRemote = "remote"
	MethodLocal  = "local"
)

// Report is a generated document with its metadata header already prepended.
type Report struct {
	Body             string `json:"report"`
	TemplateID       string `json:"template"`
	GenerationMethod string `json:"method"`
}

// ValidationError marks bad caller input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

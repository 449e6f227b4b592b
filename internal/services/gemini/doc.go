// Package gemini registers transcripts with the Gemini file API and asks
// grounded questions against them with generateContent.
//
// An uploaded transcript becomes an addressable artifact (a Handle); answers
// are generated from a single user turn that carries the grounding prompt
// plus one file reference per artifact, so the model answers from the
// transcripts alone.
package gemini

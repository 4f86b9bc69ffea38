// Package incident provides the business boundary for the incident analysis
// and query pipeline. It defines the Service (ingest, query, status updates,
// health), the Generator (total action plan generation with a severity-seeded
// fallback), the Translator (fail-closed natural-language query translation),
// the Store interface (idempotent persistence keyed on the business id), and
// the domain models.
package incident

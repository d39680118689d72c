// Package models holds the GORM persistence models backing the gateway's
// audit tables. Domain entities stay free of ORM tags; each model here
// carries the column mappings and converts to and from its domain
// counterpart via ToDomain/FromDomain.
//
// The gateway persists very little on purpose. Shopify owns catalog, cart,
// customer, and order state, so the only table is the VAT exemption audit
// trail (vat.go), with its schema managed by the SQL files under
// migrations/.
package models

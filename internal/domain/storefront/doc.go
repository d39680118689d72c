// Package storefront contains the Storefront bounded context.
// This context models the shapes the gateway exchanges with Shopify's
// Storefront, Customer Account, and Admin GraphQL APIs, plus the small
// amount of state the gateway owns itself (sessions, login states, and
// VAT-exemption audit rows).
//
// Key concepts:
//   - StorefrontAPI / CustomerAccountAPI / AdminAPI: port interfaces for the
//     three Shopify APIs
//   - Product, Cart, Order, Customer: pass-through value objects mirroring
//     Shopify's schema; money amounts are always decimal, never float
//   - Session: an authenticated customer's token bundle, held server-side
//   - ExemptionRequest: audit entity for VAT-exemption submissions
//
// The package declares only ports; the Shopify clients, session stores and
// GORM repository in the infrastructure layer are their adapters.
package storefront

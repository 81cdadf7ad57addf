// Package otamail decodes OTA notification emails into normalized parsed
// messages: RFC 2047 subjects, MIME part bodies, the guest-authored segment
// with platform boilerplate stripped, the sender role, the listing id, and
// booking metadata (guest name, stay dates, reservation code).
//
// Everything in this package is deterministic string work. No network, no
// database, no clock reads beyond the reference time callers pass in.
package otamail

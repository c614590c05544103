// Package filter binds effect filters to sound sources.
//
// Attachments live in a Table keyed by source id rather than inside the filter or the
// source, so rebinding always unbinds the old filter first and closing a filter detaches
// it from every source that still uses it.
package filter

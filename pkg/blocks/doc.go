/*
Package blocks renders CMS page sections.

A page arrives from the CMS as an ordered list of untyped JSON records, each
tagged with a namespaced kind such as "kallitechnia.hero". Parse turns one
record into a typed Block; Pipeline renders a whole list.

The pipeline never fails a page because of one section. Records that are not
objects, carry no kind, belong to another tenant or name an unknown block are
skipped with a warning, and a block whose renderer errors or panics is
dropped while the rest of the page renders. Warnings are deduplicated per
render pass: each call to Render owns a fresh Pass, so nothing leaks between
concurrent requests.

Logging goes through the Logger port. Production wires log.Nop(); dev mode
wires a named logger.
*/
package blocks

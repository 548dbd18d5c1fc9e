// Package inventory builds a dynamic host inventory from the CMDB portal
// API. It fetches the host list with a bearer token, validates the payload
// against the CMDB schema, sanitizes group names and renders the result as
// dynamic-inventory JSON.
package inventory

// Package sanitizer normalizes user input before it is stored or logged.
package sanitizer

// Threatmap turns a list of threat sources into a map of locations.
//
// Input is a JSON document with two parallel arrays: IP addresses of
// threat sources and how many times each of them was seen. Every address
// is geolocated with a local database and counts are summed per location.
// Result is a CSV file which can be put on a map as is.
//
// Tool itself is organized into several packages:
//
// Threats
//
// threats package reads and validates the input document.
//
// Geo
//
// geo package wraps MaxMind and IP2Location databases into a single
// Oracle interface. Resolver turns oracle records into locations and
// caches them.
//
// Aggregate and Report
//
// aggregate sums counts per location and sorts rows, report writes them
// as CSV, replacing an output file atomically.
//
// Pipeline
//
// pipeline wires everything together. A main package is a kingpin CLI
// around it with aggregate and lookup commands.
package main

// Package selection picks the cheapest hours of a day under a rule's
// constraints. Hours can be scattered across the day or grouped in
// contiguous blocks of a minimum length, optionally restricted to a time
// window that may cross midnight.
package selection

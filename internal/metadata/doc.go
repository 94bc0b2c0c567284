// Package metadata resolves a collectible token (contract id + token id) to
// the platform asset id embedded in the token's external_url.
package metadata

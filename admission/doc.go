/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package admission provides a fixed window admission gate that bounds the number of
// calls made within a window. The window is reset from outside (see package window).
package admission

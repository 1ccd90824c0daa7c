// SPDX-FileCopyrightText: 2023 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package ship

import "errors"

// Sentinel errors for the SHIP connection core. These map to the error
// taxonomy in the distilled SHIP specification (InputArgument, Communication,
// CommunicationEnd, Time, Deactivate, Parse, NoChange); Memory/Thread from the
// original C taxonomy collapse into ordinary wrapped Go errors since Go has
// no distinct allocator-failure class worth modeling separately.
var (
	ErrInputArgument    = errors.New("ship: invalid input argument")
	ErrCommunication    = errors.New("ship: communication error")
	ErrCommunicationEnd = errors.New("ship: communication ended by peer")
	ErrTime             = errors.New("ship: operation timed out")
	ErrDeactivate       = errors.New("ship: connection deactivated")
	ErrParse            = errors.New("ship: failed to parse message")
	ErrNoChange         = errors.New("ship: no change")
	ErrMisconfigured    = errors.New("ship: misconfigured connection")
	ErrClosed           = errors.New("ship: connection closed")
)

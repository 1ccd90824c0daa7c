// SPDX-FileCopyrightText: 2023 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package ship

// approved wires this Connection (as a DataWriter) into the enclosing
// node's SPINE inbound sink, then moves into the steady-state Data Exchange
// (spec.md §4.7).
func (c *Connection) approved() State {
	reader, err := c.infoProvider.SetupRemoteDevice(c.remoteSKI, c)
	if err != nil {
		c.closeWithError("setup remote device failed", err)
		return StateError
	}

	c.mu.Lock()
	c.dataReader = reader
	c.mu.Unlock()

	c.timers.waitForReady.stop()
	return StateDataExchange
}

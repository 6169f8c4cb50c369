package server

// Voice signaling is relayed between connections by id and never touches
// room state.

func (c *Client) relaySignal(msg *ClientMessage) {
	ss := msg.SendingSignal

	target, ok := c.bs.getClient(ss.UserToSignal)
	if !ok {
		c.log.Printf("sending_signal from %q: %q is not connected", c.id, ss.UserToSignal)
		return
	}

	target.queueMessage(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		UserJoined: &UserJoined{
			Signal:   ss.Signal,
			CallerId: c.id,
		},
	})
}

func (c *Client) returnSignal(msg *ClientMessage) {
	rs := msg.ReturningSignal

	target, ok := c.bs.getClient(rs.CallerId)
	if !ok {
		c.log.Printf("returning_signal from %q: %q is not connected", c.id, rs.CallerId)
		return
	}

	target.queueMessage(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		ReceivingReturnedSignal: &ReturnedSignal{
			Signal: rs.Signal,
			Id:     c.id,
		},
	})
}

// Package invocation decodes a capability invocation and routes it to the
// object it names.
//
// The dispatcher is the single point where invocation rights are checked
// before anything runs on behalf of user space. It handles three kinds of
// capability directly and delegates the rest:
//   - Endpoint: send (requires the send right)
//   - Notification: signal (requires the send right)
//   - Reply: deliver a reply to the caller (the master reply is not invokable)
//   - Null and Zombie capabilities are always rejected
//   - Thread, Domain, CNode, Untyped, IRQ control and IRQ handler invocations
//     go to their decoders with only the inputs each decoder needs
//   - every other kind goes to the architecture decoder
//
// Every rejection made here reports InvalidCapability with capability
// number 0, whatever index the caller used. Downstream consumers depend on
// that constant.
//
// On the direct paths the invoking thread is set to Restart before the
// object is touched, so that a send which blocks leaves the thread ready to
// resume. Failures of the send itself are not visible at this layer.
package invocation

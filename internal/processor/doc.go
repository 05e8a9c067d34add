// Package processor bridges the expiring store's change feed to the fan-out
// bus. The store can only deliver its feed to a function, so each batch is
// handed to Handler, which publishes one message per qualifying record.
//
// Delivery of batches is at-least-once. The handler keeps no state between
// invocations and republishes a redelivered record like any other. Any
// publish failure fails the whole invocation so the feed retries the batch.
package processor

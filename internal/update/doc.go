// Package update implements the OTA pipeline: validate the image
// source, quiesce the behavior task through the coordinator, stream
// the image into the spare firmware slot, verify and activate it, and
// restart. Failed attempts abort and restore normal operation.
//
// Every failure is a local abort that returns the coordinator to idle
// with the prior firmware untouched. The running image is replaced
// only on the single success path.
package update

// Package engine provides the generic plan executor shared by every framework
// adapter. A Runner registers an execution Record in an injected RecordStore,
// drives the Record's steps strictly in plan order, races each unit of work
// against the execution deadline, and reconciles unfinished steps before it
// returns. Step transitions are published on an EventBroker for streaming.
package engine

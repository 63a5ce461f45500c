// package tasks implements long-running operations over the Folio API.
//
// The core abstraction is ExportEngine, which exports projects to local
// files and mirrors them into the offline cache. Operations emit progress
// updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

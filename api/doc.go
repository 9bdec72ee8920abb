// Package api exposes the upload gateway over HTTP: a health endpoint,
// the multipart upload endpoint backed by the validation pipeline, and
// hardened retrieval of accepted files.
//
// Every JSON body uses the same envelope: {"success": true, "data": ...}
// on acceptance, {"success": false, "error": "..."} on rejection. Error
// messages are fixed per rejection class; internal failure detail goes
// to the logger only.
package api

// Package binder populates request structs for handler.Wrap.
//
// BindJSON decodes a strict JSON body: the content type must be
// application/json, unknown fields are rejected and nothing but whitespace
// may follow the object. Path copies router parameters into fields tagged
// `path:"name"`, using encoding.TextUnmarshaler when the field implements it.
package binder

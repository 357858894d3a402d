// Package muxbind serves contract-checked operations over a gorilla/mux
// router and publishes the OpenAPI document extracted from them.
//
// A Binder pairs a contract.Extension with a router. Operations are
// registered with wrapped handlers and declarations, then built exactly once,
// either explicitly or on the first request:
//
//	ext := contract.NewExtension()
//	b := muxbind.New(ext, nil)
//
//	b.Get("/pets/{id}", contract.NewHandler(getPet, "ctx", "id").WithDoc(getPetDoc))
//	b.Post("/pets", contract.NewHandler(createPet, "ctx", "body"),
//	    contract.Accepts(PetRequest{}),
//	    contract.Tags("pets"),
//	)
//
//	http.ListenAndServe(":8080", b)
//
// The build walks the router, derives an operation descriptor for every
// registered route, compiles the validation schemas, and freezes the
// extension; registration and configuration fail afterwards. The JSON
// document is served at Config.SpecPath (default /spec.json), its YAML twin
// next to it, and an interactive documentation page at Config.DocsPath
// (default /apidocs). None of the three appear in the document.
//
// At request time the binder enforces the operation's security requirements,
// decodes and validates the request body, binds path and query parameters,
// invokes the handler, resolves its result against the declared responses,
// and encodes the payload. Errors are routed through the extension's error
// handler table; every request carries an X-Request-ID header that appears
// in error logs.
//
// Operations declared with contract.Ignore, and methods outside
// GET/POST/PUT/DELETE/PATCH, are mounted without documentation or contract
// checks; their handlers must use the plain net/http signature.
package muxbind

// Package contract derives OpenAPI operation descriptions from Go request
// handlers and enforces them at run time: request bodies are validated
// before injection, and handler return values are checked against the
// declared response table before they are sent.
//
// The package is adapter-agnostic. A framework adapter (such as muxbind)
// enumerates routes, feeds parsed request primitives in, and materializes
// the resolved responses; everything between those two edges lives here.
//
// # Handlers
//
// Handlers are ordinary functions wrapped with the parameter names that Go
// reflection cannot recover:
//
//	func createUser(ctx context.Context, org string, body UserRequest) (UserResponse, error) {
//	    ...
//	}
//
//	h := contract.NewHandler(createUser, "ctx", "org", "body").
//	    WithDoc(createUserDoc)
//
// The last return value must be error. A first return value of any other
// type declares the implicit 200 response; a first return value of type
// Result lets the handler pick among the registered responses at run time.
// Parameters of type context.Context and *http.Request are injected by the
// adapter.
//
// # Declarations
//
// Operation metadata is attached as a list of immutable declarations at
// registration time:
//
//	b.Handle(http.MethodPost, "/orgs/{org}/users", h,
//	    contract.Accepts(UserRequest{}),
//	    contract.RespondsWith(ErrorBody{}).Code(409).Description("duplicate user"),
//	    contract.Tags("users"),
//	    contract.Security("users:write"),
//	)
//
// Build evaluates the declarations in a fixed order (responses, request
// body, query parameters, path parameters, security, tags) and produces a
// Descriptor: the operation's response table, parameter bindings, and its
// rendered Operation Object.
//
// # Doc Comments
//
// ParseDoc understands free text followed by Params:, Returns:, and
// Raises: sections. Raises: entries naming an error type known to the
// error handler table document an ErrorResponse at that error's status
// code.
//
// # Error Handling
//
// The Extension carries an ordered error handler table consulted at run
// time to turn errors into (body, status) pairs and at build time to map
// documented error types to status codes. Four default entries handle
// *HTTPError, *UnsupportedMediaTypeError, the ClientFault family, and
// finally any error; custom entries registered with AddErrorHandler are
// consulted first, in registration order.
//
// # Response Resolution
//
// At request time the Pipeline resolves a handler's Result against the
// descriptor's response table: the payload type must be registered, the
// status code must be unambiguous, and the payload must satisfy the schema
// it was documented with. Violations surface as *UnexpectedResponseError
// and *InvalidResponseError, which the default handlers map to 500s: a
// contract violation is a server bug, never a bad request.
package contract

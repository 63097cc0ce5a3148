package auth

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// metadataAuthorization is the gRPC metadata key carrying the bearer token.
// gRPC metadata keys are lowercase by convention.
const metadataAuthorization = "authorization"

// UnaryServerInterceptor returns a gRPC unary server interceptor that
// verifies the bearer token from incoming metadata and attaches the
// resulting [Claims] to the handler context.
//
// This is the service-to-service equivalent of the HTTP authentication
// middleware: internal services that call the platform over gRPC pass
// through the same verifier and fail with codes.Unauthenticated on any
// verification error.
func UnaryServerInterceptor(verifier TokenVerifier) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		ctx, err := verifyGRPCContext(ctx, verifier)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor returns a gRPC stream server interceptor that
// performs the same verification as [UnaryServerInterceptor], wrapping the
// stream so the handler observes the claims-enriched context.
func StreamServerInterceptor(verifier TokenVerifier) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		ctx, err := verifyGRPCContext(ss.Context(), verifier)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
	}
}

// verifyGRPCContext extracts the bearer token from incoming metadata,
// verifies it, and returns a context carrying the claims. All failures map
// to codes.Unauthenticated; the typed error detail stays server-side.
func verifyGRPCContext(ctx context.Context, verifier TokenVerifier) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing request metadata")
	}

	values := md.Get(metadataAuthorization)
	if len(values) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing authorization metadata")
	}

	token := ExtractBearerToken(values[0])
	if token == "" {
		return nil, status.Error(codes.Unauthenticated, "authorization metadata is not a bearer token")
	}

	claims, err := verifier.Verify(ctx, token)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "token verification failed")
	}

	return ContextWithClaims(ctx, claims), nil
}

// wrappedServerStream overrides the embedded stream's context with the
// claims-enriched one.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the claims-enriched context.
func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}

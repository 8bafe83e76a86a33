package api

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/victornm/docquiz/internal/leaderboard"
	"github.com/victornm/docquiz/internal/session"
)

// QuizServiceName is the gRPC service name. Messages are google.protobuf.Struct values
// whose fields match the JSON bodies of the HTTP API.
const QuizServiceName = "docquiz.v1.QuizService"

type quizServer interface {
	StartGame(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetState(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SubmitAnswer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	NextQuestion(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	FinishGame(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetLeaderboard(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var quizServiceDesc = grpc.ServiceDesc{
	ServiceName: QuizServiceName,
	HandlerType: (*quizServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("StartGame", quizServer.StartGame),
		unary("GetState", quizServer.GetState),
		unary("SubmitAnswer", quizServer.SubmitAnswer),
		unary("NextQuestion", quizServer.NextQuestion),
		unary("FinishGame", quizServer.FinishGame),
		unary("GetLeaderboard", quizServer.GetLeaderboard),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "docquiz/v1/quiz.proto",
}

type unaryMethod func(s quizServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(quizServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + QuizServiceName + "/" + name,
			}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(quizServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

type grpcServer struct {
	a *API
}

func (s grpcServer) StartGame(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ss, err := s.a.ss.StartGame(ctx, session.StartGameRequest{
		DocumentRef: stringField(req, "documentRef"),
	})
	if err != nil {
		return nil, err
	}

	return toStruct(ss)
}

func (s grpcServer) GetState(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ss, err := s.a.ss.GetState(ctx, session.GetStateRequest{
		SessionID: stringField(req, "sessionId"),
	})
	if err != nil {
		return nil, err
	}

	return toStruct(ss)
}

func (s grpcServer) SubmitAnswer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ss, err := s.a.ss.SubmitAnswer(ctx, session.SubmitAnswerRequest{
		SessionID: stringField(req, "sessionId"),
		Answer:    stringField(req, "answer"),
		Timeout:   req.GetFields()["timeout"].GetBoolValue(),
	})
	if err != nil {
		return nil, err
	}

	return toStruct(ss)
}

func (s grpcServer) NextQuestion(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ss, err := s.a.ss.NextQuestion(ctx, session.NextQuestionRequest{
		SessionID: stringField(req, "sessionId"),
	})
	if err != nil {
		return nil, err
	}

	return toStruct(ss)
}

func (s grpcServer) FinishGame(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ss, err := s.a.ss.FinishGame(ctx, session.FinishGameRequest{
		SessionID: stringField(req, "sessionId"),
	})
	if err != nil {
		return nil, err
	}

	return toStruct(ss)
}

func (s grpcServer) GetLeaderboard(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	l, err := s.a.ls.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{
		DocumentRef: stringField(req, "documentRef"),
	})
	if err != nil {
		return nil, err
	}

	return toStruct(toLeaderboard(*l))
}

func stringField(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

// toStruct converts v through its JSON form so both transports share one encoding.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}

	out := new(structpb.Struct)
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, fmt.Errorf("convert response: %w", err)
	}

	return out, nil
}

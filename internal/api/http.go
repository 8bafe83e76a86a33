package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/docquiz/internal/errors"
	"github.com/victornm/docquiz/internal/leaderboard"
	"github.com/victornm/docquiz/internal/session"
)

type (
	StartGameRequest struct {
		DocumentRef string `json:"documentRef"`
	}

	SubmitAnswerRequest struct {
		Answer  string `json:"answer"`
		Timeout bool   `json:"timeout"`
	}
)

func (a *API) registerRoutes(r gin.IRouter) {
	v1 := r.Group("/v1")

	v1.POST("/games", a.startGame)
	v1.GET("/games/:id", a.getState)
	v1.POST("/games/:id/answer", a.submitAnswer)
	v1.POST("/games/:id/next", a.nextQuestion)
	v1.POST("/games/:id/finish", a.finishGame)
	v1.GET("/games/:id/stream", a.handleStream)

	v1.GET("/documents/:id/leaderboard", a.getLeaderboard)
}

func (a *API) startGame(c *gin.Context) {
	var req StartGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid body: %v", err)))
		return
	}

	ss, err := a.ss.StartGame(c.Request.Context(), session.StartGameRequest{DocumentRef: req.DocumentRef})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, ss)
}

func (a *API) getState(c *gin.Context) {
	ss, err := a.ss.GetState(c.Request.Context(), session.GetStateRequest{SessionID: c.Param("id")})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ss)
}

func (a *API) submitAnswer(c *gin.Context) {
	var req SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid body: %v", err)))
		return
	}

	ss, err := a.ss.SubmitAnswer(c.Request.Context(), session.SubmitAnswerRequest{
		SessionID: c.Param("id"),
		Answer:    req.Answer,
		Timeout:   req.Timeout,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ss)
}

func (a *API) nextQuestion(c *gin.Context) {
	ss, err := a.ss.NextQuestion(c.Request.Context(), session.NextQuestionRequest{SessionID: c.Param("id")})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ss)
}

func (a *API) finishGame(c *gin.Context) {
	ss, err := a.ss.FinishGame(c.Request.Context(), session.FinishGameRequest{SessionID: c.Param("id")})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ss)
}

func (a *API) getLeaderboard(c *gin.Context) {
	l, err := a.ls.GetLeaderboard(c.Request.Context(), leaderboard.GetLeaderboardRequest{DocumentRef: c.Param("id")})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toLeaderboard(*l))
}

func writeError(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c.Request.Context(), "api: request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), e)
}

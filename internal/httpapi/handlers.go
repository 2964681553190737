package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/matheus3301/relay/internal/chat"
	"github.com/matheus3301/relay/internal/identity"
)

type sendBody struct {
	SenderID   identity.FlexID `json:"senderId"`
	ReceiverID identity.FlexID `json:"receiverId"`
	Content    string          `json:"content"`
	MimeType   string          `json:"mimeType"`
}

type readBody struct {
	ReceiverID identity.FlexID `json:"receiverId"`
	SenderID   identity.FlexID `json:"senderId"`
}

type tokenBody struct {
	Token string `json:"token"`
}

func writeError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(chat.HTTPStatus(err), gin.H{
		"error": chat.Message(err),
		"code":  chat.Code(err),
	})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error": message,
		"code":  chat.CodeValidation,
	})
}

func (h *handler) sendMessage(c *gin.Context) {
	var body sendBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid json: "+err.Error())
		return
	}
	msg, err := h.chat.Send(c.Request.Context(), chat.SendRequest{
		SenderID:   string(body.SenderID),
		ReceiverID: string(body.ReceiverID),
		Content:    body.Content,
		MimeType:   body.MimeType,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *handler) sendFile(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, "unreadable file")
		return
	}
	defer func() { _ = f.Close() }()

	msg, err := h.chat.SendFile(c.Request.Context(),
		c.PostForm("senderId"),
		c.PostForm("receiverId"),
		f,
		fh.Header.Get("Content-Type"),
	)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *handler) unreadCount(c *gin.Context) {
	var (
		n   int
		err error
	)
	if sender := c.Query("senderId"); sender != "" {
		n, err = h.chat.UnreadCountFrom(c.Request.Context(), c.Param("userId"), sender)
	} else {
		n, err = h.chat.UnreadCount(c.Request.Context(), c.Param("userId"))
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (h *handler) markRead(c *gin.Context) {
	var body readBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid json: "+err.Error())
		return
	}
	ok, err := h.chat.MarkRead(c.Request.Context(), chat.ReadRequest{
		ReceiverID: string(body.ReceiverID),
		SenderID:   string(body.SenderID),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": ok})
}

func (h *handler) history(c *gin.Context) {
	msgs, err := h.chat.History(c.Request.Context(), c.Param("userId"), c.Param("adminId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *handler) deleteMessage(c *gin.Context) {
	if err := h.chat.Delete(c.Request.Context(), c.Param("messageId")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *handler) conversations(c *gin.Context) {
	c.JSON(http.StatusOK, h.chat.Conversations(c.Request.Context(), c.Query("operatorId")))
}

func (h *handler) registerPushToken(c *gin.Context) {
	var body tokenBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid json: "+err.Error())
		return
	}
	id := h.chat.Canonical(c.Param("userId"))
	if id == "" || body.Token == "" {
		badRequest(c, "userId and token are required")
		return
	}
	h.tokens.Add(id, body.Token)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *handler) health(c *gin.Context) {
	state := "READY"
	if h.status != nil {
		state = string(h.status.Current())
	}
	c.JSON(http.StatusOK, gin.H{"status": state})
}

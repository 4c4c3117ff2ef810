package app

import (
	"errors"

	"github.com/MrWong99/clubnote/internal/calendar"
	"github.com/MrWong99/clubnote/internal/chat"
	"github.com/MrWong99/clubnote/internal/pipeline"
)

// Commands, matched exactly after trimming.
const (
	cmdClear    = "C"
	cmdMenu     = "選項"
	cmdForm     = `\form`
	cmdPDFNote  = `\pdfnote`
	cmdAudNote  = `\audnote`
	cmdSlogan   = `\slogan`
	cmdContinue = "n"
)

const (
	replyCleared        = "已清空對話紀錄"
	replyMenu           = "Quick reply"
	replyAudNote        = "好的，請給我課程的錄音檔！"
	replyPDFNote        = "好的，請給我課程相關的截圖或圖片！"
	replyForm           = "好的，請給我音檔"
	replyAudioReceived  = "已收到錄音檔，如果有的話，請給我課程相關的截圖或圖片！\n如果沒有，請輸入\"n\"告訴我～"
	replyImageReceived  = "已收到圖片，如果有的話，請給我課程的錄音檔！\n如果沒有，請輸入\"n\"告訴我～"
	replyNothingPending = "想整理社課筆記的話，請先提供錄音檔或圖片！"
	replyAudioIdle      = "你想做什麼呢？如果想整理社課筆記，請先點選「上傳音檔」！"
	replyImageIdle      = "你想做什麼呢？如果想整理社課筆記，請先點選「上傳圖片」！"
	replyFormNeedsAudio = "製作表單只需要錄音檔，請給我音檔"
	replyPromoStarted   = "開始生成文宣，請稍等..."
	replyFormCreated    = "表單已建立："

	replyClearFailed   = "清除對話紀錄失敗，請稍後再試"
	replyUnsupported   = "無法讀取這個音檔格式，請換一個檔案再試一次"
	replyNoSpeech      = "錄音裡聽不到內容，請重新錄音或提供圖片"
	replyExtractFailed = "無法整理出結果，請再試一次"
	replyTimeout       = "處理逾時，請重新開始"
	replyUpstream      = "服務暫時無法使用，請稍後再試"
	replyFormsDisabled = "表單功能尚未設定"
	replyPromoDisabled = "文宣功能尚未設定"
	replyFailed        = "發生錯誤，請稍後再試"
)

func menu() chat.Reply {
	return chat.Reply{
		Text: replyMenu,
		QuickReplies: []chat.QuickReply{
			{Label: "語音轉表單", Text: cmdForm},
			{Label: "簡報轉摘要", Text: cmdPDFNote},
			{Label: "語音轉摘要", Text: cmdAudNote},
			{Label: "生成文案", Text: cmdSlogan},
		},
	}
}

// errorReply picks the user-facing text for err. Order matters: a timeout
// wraps whatever stage was running.
func errorReply(err error) string {
	var inErr *pipeline.InputError
	switch {
	case errors.As(err, &inErr):
		return inErr.Prompt
	case errors.Is(err, pipeline.ErrTimeout):
		return replyTimeout
	case errors.Is(err, ErrFormsDisabled):
		return replyFormsDisabled
	case errors.Is(err, errPromoDisabled):
		return replyPromoDisabled
	case errors.Is(err, pipeline.ErrUnsupportedFormat):
		return replyUnsupported
	case errors.Is(err, pipeline.ErrTranscription):
		return replyNoSpeech
	case errors.Is(err, pipeline.ErrExtraction), errors.Is(err, calendar.ErrInvalidURL):
		return replyExtractFailed
	}
	var up *pipeline.UpstreamError
	if errors.As(err, &up) {
		return replyUpstream
	}
	return replyFailed
}

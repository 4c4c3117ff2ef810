package extract

import (
	"context"
	"errors"
	"strings"

	"github.com/MrWong99/clubnote/internal/observe"
	"github.com/MrWong99/clubnote/internal/pipeline"
	"github.com/MrWong99/clubnote/pkg/provider/llm"
	"github.com/MrWong99/clubnote/pkg/types"
)

// Event holds the fields read off an event poster. Time is in Google
// Calendar format, either a single UTC instant or a start/end pair
// ("20240409T070000Z/20240409T080000Z").
type Event struct {
	Time     string `json:"time"`
	Location string `json:"location"`
	Title    string `json:"title"`
	Content  string `json:"content"`
}

const eventPrompt = `請幫我把圖片中的時間、地點、活動標題 以及活動內容提取出來。
其中時間區間的格式必須符合 Google Calendar 的格式，像是 "20240409T070000Z/20240409T080000Z"。
由於時區為 GMT+8，所以請記得將時間換算成 GMT+0 的時間。
如果是中華民國年，請轉換成西元年，例如 110 年要轉換成 2021 年。
content 請只保留純文字，不要有任何 HTML 標籤，並且幫忙列點一些活動的注意事項。
不准有 markdown 的格式。
輸出成 JSON 格式，絕對不能有其他多餘的格式，例如：
{"time": "20240409T070000Z", "location": "台北市", "title": "大直美術館極限公園", "content": "這是一個很棒的地方，歡迎大家來參加！"}`

// ExtractEvent reads an [Event] from a poster image.
func (e *Extractor) ExtractEvent(ctx context.Context, img types.Image) (_ *Event, err error) {
	if len(img.Data) == 0 {
		return nil, pipeline.Fatal(pipeline.StageExtract, ErrNoInput)
	}

	ctx, done := observe.StartStage(ctx, e.metrics, pipeline.StageExtract)
	defer func() { done(err, "") }()

	out, err := e.complete(ctx, "", eventPrompt, &img, true)
	if err != nil {
		return nil, err
	}
	var ev Event
	if err := llm.DecodeJSON(out, &ev); err != nil {
		return nil, malformed("event", err)
	}
	if strings.TrimSpace(ev.Title) == "" && strings.TrimSpace(ev.Time) == "" {
		return nil, malformed("event", errors.New("neither title nor time present"))
	}
	return &ev, nil
}

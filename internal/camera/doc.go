// Package camera 検査ラインのカメラ接続とキャプチャを担う
//
// # 責務
// - 種類の異なるカメラバックエンドを共通の connect/capture/release で操作する
// - カメラ毎の接続状態（Session）を独立に管理する
// - ネットワークカメラとのトリガー/応答プロトコルを実装する
// - 全カメラの一括解放を保証する
//
// # 使い分け
// このパッケージは以下の場合に使用する：
// - 設定済みのカメラ一覧から撮影を行いたい
// - 複数カメラを名前で指定して個別に接続・撮影・解放したい
//
// # 仕様
//   - Registry: 名前をキーにしたSessionの集合。キー集合は生成後に変化しない
//   - Session: 1台のカメラの状態（disconnected / connected）と接続ハンドルを所有する
//   - Backend: USB (frame grabber), IV2/IV3/IV4 (trigger socket), VS (SDK handle)
//   - トリガープロトコル: "TRIGGER" を送信し、"IMAGE_OK" を受信したら成功
//   - 接続済みのSessionへのConnectは ErrAlreadyConnected で拒否する
//   - キャプチャ失敗後もSessionは connected のまま（再接続は呼び出し側の判断）
//   - 状態遷移は全て EventSink に通知される
//   - 同一カメラへの操作はSession毎のロックで直列化され、別カメラは並行に動作できる
//
// # 前提要件
//   - ffmpeg: USBカメラからの1フレーム取得に使用
//     Ubuntu/Debian: sudo apt install ffmpeg
//   - videoグループへの参加: デバイスアクセス権限
//     sudo usermod -a -G video $USER
package camera
